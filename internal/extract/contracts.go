package extract

import "context"

// Request carries one scanned document to the extraction endpoint.
type Request struct {
	Filename string
	Image    []byte
}

// Result is the normalized shape we want back from the extraction endpoint:
// the unstructured OCR text plus the structured markup fragment describing
// the document's clinical fields.
type Result struct {
	RawText          string `json:"raw_text"`
	StructuredOutput string `json:"structured_output"`
}

// Extractor is the interface the batch orchestrator depends on.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}

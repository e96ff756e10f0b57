package constants

// RecordStatus is the canonical lifecycle status for a document record.
type RecordStatus string

// Stable values (these exact strings cross the presentation boundary).
const (
	StatusPending    RecordStatus = "pending"    // queued, not yet attempted
	StatusProcessing RecordStatus = "processing" // extraction call in flight
	StatusComplete   RecordStatus = "complete"   // terminal until removal
	StatusError      RecordStatus = "error"      // recoverable via retry
)

// Phase is the batch-wide, cosmetic progress label. It describes the whole
// run, not any individual record, and may be inconsistent with per-record
// status at any instant.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseOCR        Phase = "ocr"
	PhaseReasoning  Phase = "reasoning"
	PhaseValidating Phase = "validating"
	PhaseComplete   Phase = "complete"
)

// TickOrder is the fixed schedule the phase ticker walks through while a
// batch run is in flight.
var TickOrder = []Phase{PhaseUploading, PhaseOCR, PhaseReasoning, PhaseValidating}

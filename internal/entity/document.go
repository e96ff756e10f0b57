package entity

import (
	"time"

	"github.com/marcus-hale/chartscan/constants"
)

// SourceFile is the immutable scanned payload attached to a record at intake.
type SourceFile struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
}

// Preview is an ownership-scoped display resource created at intake and
// released exactly once when its record leaves the batch.
type Preview interface {
	// URL returns a location the presentation layer can render.
	URL() string
	// Release frees the underlying resource. Safe to call more than once;
	// only the first call has effect.
	Release()
}

// DocumentRecord is one scanned document moving through the extraction
// pipeline. ID is the sole lookup key and never changes for the record's
// lifetime.
type DocumentRecord struct {
	ID               string                 `json:"id"`
	Source           SourceFile             `json:"source"`
	Preview          Preview                `json:"-"`
	Status           constants.RecordStatus `json:"status"`
	Progress         int                    `json:"progress"` // 0..100, cosmetic only
	RawText          string                 `json:"raw_text,omitempty"`
	StructuredOutput string                 `json:"structured_output,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	QueuedAt         time.Time              `json:"queued_at"`
}

// RecordPatch is a partial update merged into a record by the store. Nil
// fields are left untouched.
type RecordPatch struct {
	Status           *constants.RecordStatus
	Progress         *int
	RawText          *string
	StructuredOutput *string
	ErrorMessage     *string
}

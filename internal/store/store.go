// Package store holds the mutable batch of document records for the current
// session. The batch is the only shared mutable structure in the system: every
// mutation replaces the whole record slice under one lock, so any reader holds
// a self-consistent snapshot and no partial in-place mutation is ever visible.
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-hale/chartscan/constants"
	"github.com/marcus-hale/chartscan/internal/common"
	"github.com/marcus-hale/chartscan/internal/entity"
)

// PreviewFactory creates the display resource attached to a record at intake.
type PreviewFactory func(filename string, data []byte) (entity.Preview, error)

// Store is the document record store for one batch session.
type Store struct {
	mu       sync.RWMutex
	records  []entity.DocumentRecord
	combined []string
	phase    constants.Phase

	previews PreviewFactory
	notifier common.Notifier
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPreviewFactory overrides how intake previews are created.
func WithPreviewFactory(f PreviewFactory) Option {
	return func(s *Store) {
		if f != nil {
			s.previews = f
		}
	}
}

// WithNotifier sets the sink for user-visible notifications.
func WithNotifier(n common.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		phase:    constants.PhaseIdle,
		previews: NewFilePreview,
		notifier: common.NopNotifier,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddFiles appends one pending record per file, preserving the supplied
// order, and returns the generated record ids. Intake never fails: a file
// whose preview cannot be created is still queued, just without one.
func (s *Store) AddFiles(files []entity.SourceFile) []string {
	if len(files) == 0 {
		return nil
	}

	ids := make([]string, 0, len(files))
	recs := make([]entity.DocumentRecord, 0, len(files))
	for _, f := range files {
		id := uuid.New().String()
		prev, err := s.previews(f.Filename, f.Data)
		if err != nil {
			s.logger.Warn("store.preview.failed", "filename", f.Filename, "error", err)
			prev = nil
		}
		recs = append(recs, entity.DocumentRecord{
			ID:       id,
			Source:   f,
			Preview:  prev,
			Status:   constants.StatusPending,
			Progress: 0,
			QueuedAt: time.Now(),
		})
		ids = append(ids, id)
	}

	s.mu.Lock()
	next := make([]entity.DocumentRecord, 0, len(s.records)+len(recs))
	next = append(next, s.records...)
	next = append(next, recs...)
	s.records = next
	s.mu.Unlock()

	s.logger.Info("store.add_files", "count", len(files))
	s.notifier.Notify(common.NotifyInfo, fmt.Sprintf("queued %d document(s)", len(files)))
	return ids
}

// Remove deletes the record with the given id, releasing its preview exactly
// once. Absent ids are a no-op, not an error. Removing the last record clears
// the combined output and resets the workflow phase to idle.
func (s *Store) Remove(id string) {
	var released entity.Preview

	s.mu.Lock()
	idx := slices.IndexFunc(s.records, func(r entity.DocumentRecord) bool { return r.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	released = s.records[idx].Preview

	next := make([]entity.DocumentRecord, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	s.records = next
	if len(s.records) == 0 {
		s.combined = nil
		s.phase = constants.PhaseIdle
	}
	s.mu.Unlock()

	if released != nil {
		released.Release()
	}
	s.logger.Info("store.remove", "id", id)
}

// RetryFailed resets every error record to pending and rewinds the workflow:
// the phase returns to idle and the combined output is cleared for the WHOLE
// batch, not just the failed records' contributions. Completed records keep
// their own data but their prior output is discarded from the aggregate.
// Returns the number of records reset.
func (s *Store) RetryFailed() int {
	s.mu.Lock()
	reset := 0
	next := make([]entity.DocumentRecord, len(s.records))
	copy(next, s.records)
	for i := range next {
		if next[i].Status == constants.StatusError {
			next[i].Status = constants.StatusPending
			next[i].Progress = 0
			next[i].ErrorMessage = ""
			reset++
		}
	}
	s.records = next
	s.combined = nil
	s.phase = constants.PhaseIdle
	s.mu.Unlock()

	if reset > 0 {
		s.logger.Info("store.retry_failed", "reset", reset)
	}
	return reset
}

// Update merges a patch into the record with the given id. Absent ids are a
// silent no-op; this is the guard that makes late-arriving results for a
// removed record harmless.
func (s *Store) Update(id string, patch entity.RecordPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.records, func(r entity.DocumentRecord) bool { return r.ID == id })
	if idx < 0 {
		return false
	}

	next := make([]entity.DocumentRecord, len(s.records))
	copy(next, s.records)
	applyPatch(&next[idx], patch)
	s.records = next
	return true
}

// Complete marks a record complete, stores its extraction results and appends
// its structured output to the combined output in one step, so the append
// happens at most once per record and never for a record that has already
// been removed.
func (s *Store) Complete(id, rawText, structured string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.records, func(r entity.DocumentRecord) bool { return r.ID == id })
	if idx < 0 {
		return false
	}

	next := make([]entity.DocumentRecord, len(s.records))
	copy(next, s.records)
	next[idx].Status = constants.StatusComplete
	next[idx].Progress = 100
	next[idx].RawText = rawText
	next[idx].StructuredOutput = structured
	s.records = next
	s.combined = append(slices.Clone(s.combined), structured)
	return true
}

// Snapshot returns the current record sequence. The returned slice is never
// mutated in place by the store, so callers may iterate it freely.
func (s *Store) Snapshot() []entity.DocumentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (entity.DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := slices.IndexFunc(s.records, func(r entity.DocumentRecord) bool { return r.ID == id })
	if idx < 0 {
		return entity.DocumentRecord{}, false
	}
	return s.records[idx], true
}

// Len returns the number of records in the batch.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// EligibleIDs returns, in batch order, the ids of every record a batch run
// would attempt (status pending or error).
func (s *Store) EligibleIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, r := range s.records {
		if r.Status == constants.StatusPending || r.Status == constants.StatusError {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// CombinedOutput returns every completed record's structured output,
// concatenated in batch order and newline-separated.
func (s *Store) CombinedOutput() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.Join(s.combined, "\n")
}

// ClearCombined discards the aggregated output; called when a new batch run
// starts.
func (s *Store) ClearCombined() {
	s.mu.Lock()
	s.combined = nil
	s.mu.Unlock()
}

// Phase returns the batch-wide cosmetic phase.
func (s *Store) Phase() constants.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase sets the batch-wide cosmetic phase (last write wins).
func (s *Store) SetPhase(p constants.Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func applyPatch(r *entity.DocumentRecord, p entity.RecordPatch) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Progress != nil {
		r.Progress = *p.Progress
	}
	if p.RawText != nil {
		r.RawText = *p.RawText
	}
	if p.StructuredOutput != nil {
		r.StructuredOutput = *p.StructuredOutput
	}
	if p.ErrorMessage != nil {
		r.ErrorMessage = *p.ErrorMessage
	}
}

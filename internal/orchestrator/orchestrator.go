// Package orchestrator drives each eligible record in the batch through the
// extraction pipeline, strictly sequentially and in batch order, with at most
// one extraction call in flight at any time.
//
// Failure contract: the first extraction failure marks that record as error
// and aborts the remainder of the run. Records after the failing one keep
// their prior status and are not attempted; a later run (or an explicit
// retry) picks them up. Exactly one failure notification is emitted per run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcus-hale/chartscan/constants"
	"github.com/marcus-hale/chartscan/internal/common"
	"github.com/marcus-hale/chartscan/internal/entity"
	"github.com/marcus-hale/chartscan/internal/extract"
	"github.com/marcus-hale/chartscan/internal/store"
)

// ErrRunInProgress is returned when Run is called while another run is still
// in flight. Runs are never interleaved.
var ErrRunInProgress = errors.New("batch run already in progress")

// Summary reports what a single run did.
type Summary struct {
	Eligible       int
	Succeeded      int
	FailedID       string
	FailureMessage string
}

// Orchestrator runs the batch pipeline over the record store.
type Orchestrator struct {
	store     *store.Store
	extractor extract.Extractor
	notifier  common.Notifier
	logger    *slog.Logger

	tickInterval time.Duration
	resultsDelay time.Duration

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the sink for user-visible notifications.
func WithNotifier(n common.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithTickInterval sets the wall-clock schedule of the cosmetic phase ticker.
func WithTickInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithResultsDelay sets the pause before the success notification.
func WithResultsDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.resultsDelay = d
		}
	}
}

func New(st *store.Store, ex extract.Extractor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:        st,
		extractor:    ex,
		notifier:     common.NopNotifier,
		logger:       logger,
		tickInterval: 900 * time.Millisecond,
		resultsDelay: 600 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a batch run is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run processes every eligible record (pending or error), one at a time, in
// batch order. A second call while a run is in flight returns
// ErrRunInProgress. With no eligible records it is a no-op.
//
// The combined output is cleared at the start of each run; only this run's
// completions contribute to it afterwards.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	eligible := o.store.EligibleIDs()
	if len(eligible) == 0 {
		o.logger.Info("batch.run.noop")
		return Summary{}, nil
	}

	o.logger.Info("batch.run.start", "eligible", len(eligible))
	o.store.ClearCombined()

	stopTicker := o.startPhaseTicker()

	summary := Summary{Eligible: len(eligible)}
	for _, id := range eligible {
		rec, ok := o.store.Get(id)
		if !ok {
			// Removed since the run started; skip.
			continue
		}

		processing := constants.StatusProcessing
		progress := 25
		o.store.Update(id, entity.RecordPatch{Status: &processing, Progress: &progress})

		res, err := o.extractor.Extract(ctx, extract.Request{
			Filename: rec.Source.Filename,
			Image:    rec.Source.Data,
		})
		if err != nil {
			msg := err.Error()
			if msg == "" {
				msg = "extraction failed"
			}
			failed := constants.StatusError
			o.store.Update(id, entity.RecordPatch{Status: &failed, ErrorMessage: &msg})
			summary.FailedID = id
			summary.FailureMessage = msg

			o.logger.Error("batch.record.failed", "id", id, "error", err)
			o.notifier.Notify(common.NotifyError, fmt.Sprintf("processing failed: %s", msg))
			break
		}

		o.store.Complete(id, res.RawText, res.StructuredOutput)
		summary.Succeeded++
		o.logger.Info("batch.record.complete", "id", id, "markup_len", len(res.StructuredOutput))
	}

	stopTicker()
	o.store.SetPhase(constants.PhaseComplete)

	if summary.Succeeded > 0 {
		o.pause(ctx, o.resultsDelay)
		o.notifier.Notify(common.NotifySuccess,
			fmt.Sprintf("processed %d document(s) successfully", summary.Succeeded))
	}

	o.logger.Info("batch.run.done",
		"eligible", summary.Eligible,
		"succeeded", summary.Succeeded,
		"failed_id", summary.FailedID,
	)
	return summary, nil
}

// startPhaseTicker walks the cosmetic phase schedule on a fixed wall clock.
// The schedule is decorative: it is uncorrelated with per-record progress and
// never gates the real pipeline. Returns a stop function.
func (o *Orchestrator) startPhaseTicker() func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.store.SetPhase(constants.TickOrder[0])
		t := time.NewTicker(o.tickInterval)
		defer t.Stop()
		next := 1
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if next >= len(constants.TickOrder) {
					return
				}
				o.store.SetPhase(constants.TickOrder[next])
				next++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

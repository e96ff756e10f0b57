package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-hale/chartscan/constants"
	"github.com/marcus-hale/chartscan/internal/common"
	"github.com/marcus-hale/chartscan/internal/entity"
	"github.com/marcus-hale/chartscan/internal/extract"
	"github.com/marcus-hale/chartscan/internal/store"
)

type fakeExtractor struct {
	mu          sync.Mutex
	inflight    int
	maxInflight int
	calls       []string
	delay       time.Duration
	failOn      map[string]string // filename -> failure message
}

func (f *fakeExtractor) Extract(_ context.Context, req extract.Request) (extract.Result, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.calls = append(f.calls, req.Filename)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if msg, ok := f.failOn[req.Filename]; ok {
		return extract.Result{}, errors.New(msg)
	}
	return extract.Result{
		RawText:          "text from " + req.Filename,
		StructuredOutput: "<document><notes>" + req.Filename + "</notes></document>",
	}, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	kinds []common.NotifyKind
	texts []string
}

func (n *captureNotifier) Notify(kind common.NotifyKind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.texts = append(n.texts, text)
}

func (n *captureNotifier) count(kind common.NotifyKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

func noPreview(string, []byte) (entity.Preview, error) { return nil, nil }

func newRig(t *testing.T, ex extract.Extractor) (*store.Store, *Orchestrator, *captureNotifier) {
	t.Helper()
	notifier := &captureNotifier{}
	st := store.NewStore(nil, store.WithPreviewFactory(noPreview), store.WithNotifier(notifier))
	orch := New(st, ex, nil,
		WithNotifier(notifier),
		WithTickInterval(5*time.Millisecond),
		WithResultsDelay(0),
	)
	return st, orch, notifier
}

func queue(st *store.Store, names ...string) []string {
	files := make([]entity.SourceFile, 0, len(names))
	for _, n := range names {
		files = append(files, entity.SourceFile{Filename: n, Data: []byte("scan")})
	}
	return st.AddFiles(files)
}

func TestRunAllSucceed(t *testing.T) {
	ex := &fakeExtractor{}
	st, orch, notifier := newRig(t, ex)
	queue(st, "a.jpg", "b.jpg", "c.jpg")

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Eligible)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Empty(t, summary.FailedID)

	for _, rec := range st.Snapshot() {
		assert.Equal(t, constants.StatusComplete, rec.Status)
		assert.Equal(t, 100, rec.Progress)
		assert.NotEmpty(t, rec.RawText)
		assert.NotEmpty(t, rec.StructuredOutput)
	}

	// Calls and combined output follow batch order.
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, ex.calls)
	combined := st.CombinedOutput()
	require.Equal(t, 3, len(strings.Split(combined, "\n")))
	assert.Less(t, strings.Index(combined, "a.jpg"), strings.Index(combined, "b.jpg"))
	assert.Less(t, strings.Index(combined, "b.jpg"), strings.Index(combined, "c.jpg"))

	assert.Equal(t, constants.PhaseComplete, st.Phase())
	assert.Equal(t, 1, notifier.count(common.NotifySuccess))
	assert.Equal(t, 0, notifier.count(common.NotifyError))
}

func TestRunFailureAbortsRemainder(t *testing.T) {
	ex := &fakeExtractor{failOn: map[string]string{"c.jpg": "page unreadable"}}
	st, orch, notifier := newRig(t, ex)
	ids := queue(st, "a.jpg", "b.jpg", "c.jpg", "d.jpg")

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Eligible)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, ids[2], summary.FailedID)
	assert.Equal(t, "page unreadable", summary.FailureMessage)

	snap := st.Snapshot()
	assert.Equal(t, constants.StatusComplete, snap[0].Status)
	assert.Equal(t, constants.StatusComplete, snap[1].Status)
	assert.Equal(t, constants.StatusError, snap[2].Status)
	assert.Equal(t, "page unreadable", snap[2].ErrorMessage)
	// The record after the failure keeps its prior status, not attempted.
	assert.Equal(t, constants.StatusPending, snap[3].Status)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, ex.calls)

	// Only the two successes contributed to combined output, in order.
	combined := st.CombinedOutput()
	assert.Contains(t, combined, "a.jpg")
	assert.Contains(t, combined, "b.jpg")
	assert.NotContains(t, combined, "c.jpg")
	assert.NotContains(t, combined, "d.jpg")

	assert.Equal(t, 1, notifier.count(common.NotifyError))
	assert.Equal(t, 1, notifier.count(common.NotifySuccess))
}

func TestRunFirstRecordFails(t *testing.T) {
	ex := &fakeExtractor{failOn: map[string]string{"a.jpg": "endpoint unreachable"}}
	st, orch, notifier := newRig(t, ex)
	queue(st, "a.jpg", "b.jpg")

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Succeeded)

	snap := st.Snapshot()
	assert.Equal(t, constants.StatusError, snap[0].Status)
	assert.Equal(t, constants.StatusPending, snap[1].Status)
	assert.Empty(t, st.CombinedOutput())

	// Exactly one failure notification, no success notification.
	assert.Equal(t, 1, notifier.count(common.NotifyError))
	assert.Equal(t, 0, notifier.count(common.NotifySuccess))
}

func TestRunNoEligibleRecordsIsNoop(t *testing.T) {
	ex := &fakeExtractor{}
	st, orch, notifier := newRig(t, ex)
	ids := queue(st, "a.jpg")
	require.True(t, st.Complete(ids[0], "text", "<document/>"))

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Eligible)
	assert.Empty(t, ex.calls)
	// A no-op run does not clear the aggregate.
	assert.Equal(t, "<document/>", st.CombinedOutput())
	assert.Equal(t, 1, notifier.count(common.NotifyInfo)) // intake only
}

func TestRunClearsCombinedOutputAtStart(t *testing.T) {
	ex := &fakeExtractor{}
	st, orch, _ := newRig(t, ex)
	ids := queue(st, "a.jpg", "b.jpg")
	require.True(t, st.Complete(ids[0], "text", "<document>old</document>"))

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Only this run's completion (b.jpg) contributes.
	combined := st.CombinedOutput()
	assert.NotContains(t, combined, "old")
	assert.Contains(t, combined, "b.jpg")
}

func TestRetryFailedThenRun(t *testing.T) {
	ex := &fakeExtractor{failOn: map[string]string{"b.jpg": "smudged scan"}}
	st, orch, _ := newRig(t, ex)
	queue(st, "a.jpg", "b.jpg")

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	ex.mu.Lock()
	delete(ex.failOn, "b.jpg")
	ex.mu.Unlock()

	require.Equal(t, 1, st.RetryFailed())
	assert.Equal(t, constants.PhaseIdle, st.Phase())

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	for _, rec := range st.Snapshot() {
		assert.Equal(t, constants.StatusComplete, rec.Status)
	}
}

func TestSequentialExtractionCalls(t *testing.T) {
	ex := &fakeExtractor{delay: 10 * time.Millisecond}
	st, orch, _ := newRig(t, ex)
	queue(st, "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg")

	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ex.maxInflight, "no two extraction calls may be in flight at once")
}

type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExtractor) Extract(context.Context, extract.Request) (extract.Result, error) {
	b.started <- struct{}{}
	<-b.release
	return extract.Result{RawText: "t", StructuredOutput: "<document/>"}, nil
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
	st, orch, _ := newRig(t, ex)
	queue(st, "a.jpg")

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background())
		done <- err
	}()

	<-ex.started
	assert.True(t, orch.Running())
	_, err := orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(ex.release)
	require.NoError(t, <-done)
	assert.False(t, orch.Running())
}

func TestRecordRemovedMidRunIsSkipped(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{}, 2), release: make(chan struct{})}
	st, orch, _ := newRig(t, ex)
	ids := queue(st, "a.jpg", "b.jpg")

	done := make(chan Summary, 1)
	go func() {
		s, _ := orch.Run(context.Background())
		done <- s
	}()

	// The second record is eligible when the run snapshots but is removed
	// while the first extraction is still in flight; it must be skipped,
	// not resurrected.
	<-ex.started
	st.Remove(ids[1])
	close(ex.release)

	summary := <-done
	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, st.Len())
}

package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/autostand/internal/logger"
)

// Watcher matches an independent event stream against at most one pending
// confirmation request.
type Watcher struct {
	// mu guards pending.
	mu      sync.Mutex
	pending *Wait

	source    Source
	available bool

	ctx      context.Context //nolint:containedctx // Carries the logger for line handling.
	done     chan struct{}
	disposed sync.Once
	stopped  chan struct{}
}

// Wait is a registered confirmation request.
type Wait struct {
	watcher *Watcher
	since   time.Time
	filter  string
	result  chan Event
}

// New creates a Watcher with no source attached.
// It reports unavailable until Start succeeds.
func New() *Watcher {
	return &Watcher{
		ctx:     context.Background(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start attaches and starts source. A failure leaves the watcher unavailable
// and is returned for logging only.
func (w *Watcher) Start(ctx context.Context, source Source) error {
	w.ctx = logger.WithName(ctx, "watcher")

	if err := source.Start(w.ctx, w.handleLine); err != nil {
		logger.WarnKV(w.ctx, "Confirmation watcher unavailable", "error", err)

		return err
	}

	w.source = source
	w.available = true

	go func() {
		defer close(w.stopped)

		err := source.Wait()

		select {
		case <-w.done:
			logger.DebugKV(w.ctx, "Event source stopped", "error", err)
		default:
			logger.WarnKV(w.ctx, "Event source exited, confirmation disabled", "error", err)
		}
	}()

	return nil
}

// Available reports whether the watcher has a running source. A source that
// exited on its own counts as unavailable.
func (w *Watcher) Available() bool {
	if w == nil || !w.available {
		return false
	}

	select {
	case <-w.done:
		return false
	case <-w.stopped:
		return false
	default:
		return true
	}
}

// Register installs a wait for the next Ok or Error event at or after since
// whose URL contains filter. Any unresolved previous wait is discarded.
func (w *Watcher) Register(since time.Time, filter string) *Wait {
	wait := &Wait{
		watcher: w,
		since:   since,
		filter:  filter,
		result:  make(chan Event, 1),
	}

	w.mu.Lock()
	superseded := w.pending != nil
	w.pending = wait
	w.mu.Unlock()

	if superseded {
		logger.DebugKV(w.ctx, "Pending wait superseded")
	}

	return wait
}

// WaitForNextResult registers a wait and blocks until it is fulfilled, the
// timeout elapses, ctx ends or the watcher is disposed.
func (w *Watcher) WaitForNextResult(
	ctx context.Context,
	since time.Time,
	timeout time.Duration,
	filter string,
) (Event, bool) {
	return w.Register(since, filter).Await(ctx, timeout)
}

// Await blocks until the wait is fulfilled. It returns false on timeout,
// cancellation or disposal, clearing the slot if the wait still holds it.
func (wt *Wait) Await(ctx context.Context, timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-wt.result:
		return ev, true
	case <-timer.C:
		logger.DebugKV(wt.watcher.ctx, "Confirmation wait timed out", "timeout", timeout.String())
	case <-ctx.Done():
	case <-wt.watcher.done:
	case <-wt.watcher.stopped:
		logger.DebugKV(wt.watcher.ctx, "Event source exited while waiting")
	}

	wt.watcher.clear(wt)

	// A match may have landed between the timer and the clear.
	select {
	case ev := <-wt.result:
		return ev, true
	default:
		return Event{}, false
	}
}

// Cancel releases the slot without waiting.
func (wt *Wait) Cancel() {
	wt.watcher.clear(wt)
}

// Dispose stops the source and releases any pending wait. It is safe to call
// more than once.
func (w *Watcher) Dispose() {
	if w == nil {
		return
	}

	w.disposed.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.pending = nil
		w.mu.Unlock()

		if w.source == nil {
			return
		}

		if err := w.source.Stop(); err != nil {
			logger.WarnKV(w.ctx, "Failed to stop event source", "error", err)
		}

		<-w.stopped
	})
}

func (w *Watcher) clear(wait *Wait) {
	w.mu.Lock()
	if w.pending == wait {
		w.pending = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) handleLine(line string) {
	ev, ok := ParseLine(line, time.Now())
	if !ok || ev.Status == StatusOther {
		return
	}

	w.mu.Lock()

	wait := w.pending
	if wait == nil || !wait.accepts(ev) {
		w.mu.Unlock()
		return
	}

	w.pending = nil
	w.mu.Unlock()

	logger.DebugKV(w.ctx, "Confirmation event matched", "status", ev.Status.String(), "url", ev.URL)

	wait.result <- ev
}

func (wt *Wait) accepts(ev Event) bool {
	if wt.filter != "" && !strings.Contains(ev.URL, wt.filter) {
		return false
	}

	// Printed timestamps carry whole seconds only.
	since := wt.since
	if !ev.LoggedAt.IsZero() {
		since = since.Truncate(time.Second)
	}

	return !ev.At().Before(since)
}

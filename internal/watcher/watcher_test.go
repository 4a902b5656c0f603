package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

const hookURL = "https://x.workers.dev/api/autostand-webhook"

var errNoBinary = errors.New("no such binary")

// lineSource is a Source fed directly by the test.
type lineSource struct {
	emit     func(string)
	stopped  chan struct{}
	stopOnce sync.Once
	startErr error
}

func newLineSource() *lineSource {
	return &lineSource{stopped: make(chan struct{})}
}

func (s *lineSource) Start(_ context.Context, emit func(string)) error {
	if s.startErr != nil {
		return s.startErr
	}

	s.emit = emit

	return nil
}

func (s *lineSource) Wait() error {
	<-s.stopped
	return nil
}

func (s *lineSource) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}

// line formats an event line with a printed timestamp.
func line(status string, at time.Time) string {
	return fmt.Sprintf("POST %s - %s @ %s", hookURL, status, at.Format("2006/1/2 15:04:05"))
}

func startWatcher(t *testing.T) (*Watcher, *lineSource) {
	t.Helper()

	src := newLineSource()
	w := New()
	require.NoError(t, w.Start(context.Background(), src))
	t.Cleanup(w.Dispose)

	return w, src
}

// TestWatcher_DropsEventsBeforeSince delivers exactly the event logged after since.
func TestWatcher_DropsEventsBeforeSince(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, src := startWatcher(t)

		time.Sleep(10 * time.Second)

		since := time.Now()
		wait := w.Register(since, "workers.dev")

		e1 := line("Ok", since.Add(-5*time.Second))
		e2 := line("Error", since.Add(2*time.Second))

		src.emit(e1)
		src.emit(e2)

		ev, ok := wait.Await(context.Background(), 5*time.Second)
		require.True(t, ok)
		require.Equal(t, e2, ev.Line)
		require.True(t, ev.IsError())
	})
}

// TestWatcher_SupersededWaitTimesOut lets the second registration receive the event.
func TestWatcher_SupersededWaitTimesOut(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, src := startWatcher(t)
		since := time.Now()

		first := w.Register(since, "")
		second := w.Register(since, "")

		e2 := line("Ok", since.Add(time.Second))
		src.emit(e2)

		ev, ok := second.Await(context.Background(), 5*time.Second)
		require.True(t, ok)
		require.Equal(t, e2, ev.Line)

		start := time.Now()
		_, ok = first.Await(context.Background(), 3*time.Second)
		require.False(t, ok)
		require.Equal(t, 3*time.Second, time.Since(start))
	})
}

// TestWatcher_FiltersAndIgnoresOther drops foreign URLs, other statuses and unparsed lines.
func TestWatcher_FiltersAndIgnoresOther(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, src := startWatcher(t)
		since := time.Now()

		wait := w.Register(since, "x.workers.dev")

		go func() {
			time.Sleep(time.Second)
			src.emit(fmt.Sprintf("POST https://other.example/hook - Ok @ %s", since.Add(time.Second).Format("2006/1/2 15:04:05")))
			src.emit(line("Canceled", since.Add(time.Second)))
			src.emit("Connected to autostand-webhook")
			src.emit(fmt.Sprintf("POST %s - OK", hookURL))
		}()

		ev, ok := wait.Await(context.Background(), 5*time.Second)
		require.True(t, ok)
		require.True(t, ev.IsOk())
		require.True(t, ev.LoggedAt.IsZero())
		require.Equal(t, since.Add(time.Second), ev.ReceivedAt)
	})
}

// TestWatcher_MatchClearsSlot fulfils a wait once; later events find no wait.
func TestWatcher_MatchClearsSlot(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, src := startWatcher(t)
		since := time.Now()

		wait := w.Register(since, "")
		src.emit(fmt.Sprintf("POST %s - Ok", hookURL))
		src.emit(fmt.Sprintf("POST %s - Error", hookURL))

		ev, ok := wait.Await(context.Background(), time.Second)
		require.True(t, ok)
		require.True(t, ev.IsOk())

		w.mu.Lock()
		require.Nil(t, w.pending)
		w.mu.Unlock()
	})
}

// TestWatcher_TimeoutClearsOwnSlot clears the slot on timeout only if still held.
func TestWatcher_TimeoutClearsOwnSlot(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, _ := startWatcher(t)

		_, ok := w.WaitForNextResult(context.Background(), time.Now(), time.Second, "")
		require.False(t, ok)

		w.mu.Lock()
		require.Nil(t, w.pending)
		w.mu.Unlock()
	})
}

// TestWatcher_DisposeUnblocksWait releases a pending wait immediately.
func TestWatcher_DisposeUnblocksWait(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, _ := startWatcher(t)
		wait := w.Register(time.Now(), "")

		go func() {
			time.Sleep(time.Second)
			w.Dispose()
		}()

		start := time.Now()
		_, ok := wait.Await(context.Background(), time.Minute)
		require.False(t, ok)
		require.Equal(t, time.Second, time.Since(start))
		require.False(t, w.Available())

		// Idempotent.
		w.Dispose()
	})
}

// TestWatcher_SourceExitMakesUnavailable stops offering confirmation once the
// source ends by itself and releases a pending wait early.
func TestWatcher_SourceExitMakesUnavailable(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		w, src := startWatcher(t)
		require.True(t, w.Available())

		wait := w.Register(time.Now(), "")

		go func() {
			time.Sleep(2 * time.Second)
			_ = src.Stop()
		}()

		start := time.Now()
		_, ok := wait.Await(context.Background(), time.Minute)
		require.False(t, ok)
		require.Equal(t, 2*time.Second, time.Since(start))

		synctest.Wait()
		require.False(t, w.Available())
	})
}

// TestWatcher_StartFailureIsSoft leaves the watcher unavailable.
func TestWatcher_StartFailureIsSoft(t *testing.T) {
	t.Parallel()

	src := newLineSource()
	src.startErr = errNoBinary

	w := New()
	require.ErrorIs(t, w.Start(context.Background(), src), errNoBinary)
	require.False(t, w.Available())

	w.Dispose()

	var nilWatcher *Watcher
	require.False(t, nilWatcher.Available())
	nilWatcher.Dispose()
}

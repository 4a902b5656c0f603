package watcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCommandSource_DeliversProcessOutput matches a line printed by a watch subprocess and kills it on dispose.
func TestCommandSource_DeliversProcessOutput(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	script := "echo 'Connected to autostand-webhook'; " +
		"echo 'POST https://x.workers.dev/api/autostand-webhook - Ok @ 2026/2/9 14:10:39' >&2; " +
		"exec sleep 30"

	src := NewCommandSource("sh", "-c", script).WithGrace(100 * time.Millisecond)
	w := New()

	since := time.Date(2026, 2, 9, 14, 10, 30, 0, time.Local)
	wait := w.Register(since, "workers.dev")

	require.NoError(t, w.Start(context.Background(), src))
	require.True(t, w.Available())

	ev, ok := wait.Await(context.Background(), 10*time.Second)
	require.True(t, ok)
	require.True(t, ev.IsOk())
	require.Equal(t, time.Date(2026, 2, 9, 14, 10, 39, 0, time.Local), ev.LoggedAt)

	start := time.Now()

	w.Dispose()
	require.Less(t, time.Since(start), 10*time.Second)
	require.False(t, w.Available())
}

// TestCommandSource_StartFailure reports a missing binary.
func TestCommandSource_StartFailure(t *testing.T) {
	t.Parallel()

	w := New()
	err := w.Start(context.Background(), NewCommandSource("autostand-no-such-watch-binary"))
	require.Error(t, err)
	require.False(t, w.Available())

	require.ErrorIs(t, New().Start(context.Background(), NewCommandSource(" ")), errNoCommand)
}

// TestFileSource_FollowsAppendedLines emits only lines written after Start.
func TestFileSource_FollowsAppendedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte("POST https://x.workers.dev/hook - Ok\n"), 0o600))

	w := New()
	require.NoError(t, w.Start(context.Background(), NewFileSource(path)))

	defer w.Dispose()

	wait := w.Register(time.Now(), "")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)

	_, err = file.WriteString("POST https://x.workers.dev/hook - Err")
	require.NoError(t, err)
	_, err = file.WriteString("or 503\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	ev, ok := wait.Await(context.Background(), 10*time.Second)
	require.True(t, ok)
	require.Equal(t, "Error 503", ev.StatusText)
}

// TestFileSource_WaitsForCreation picks up a file created after Start.
func TestFileSource_WaitsForCreation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "later.log")

	w := New()
	require.NoError(t, w.Start(context.Background(), NewFileSource(path)))

	defer w.Dispose()

	wait := w.Register(time.Now(), "")

	require.NoError(t, os.WriteFile(path, []byte("POST https://x.workers.dev/hook - Ok\n"), 0o600))

	ev, ok := wait.Await(context.Background(), 10*time.Second)
	require.True(t, ok)
	require.True(t, ev.IsOk())
}

// TestFileSource_MissingDirectory fails to start.
func TestFileSource_MissingDirectory(t *testing.T) {
	t.Parallel()

	w := New()
	err := w.Start(context.Background(), NewFileSource(filepath.Join(t.TempDir(), "missing", "events.log")))
	require.Error(t, err)
	require.False(t, w.Available())
}

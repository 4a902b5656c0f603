package responselog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) { panic("boom") }

// TestSink_AppendsTimestampedLines serializes concurrent appends into whole lines.
func TestSink_AppendsTimestampedLines(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	s := New(&buf)
	s.now = func() time.Time { return time.Date(2026, 2, 9, 14, 10, 39, 0, time.Local) }

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			require.True(t, s.Append("raise: Up -> OK\n"))
		})
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)

	for _, l := range lines {
		require.Equal(t, "2026/2/9 14:10:39 raise: Up -> OK", l)
	}
}

// TestSink_NeverRaises reports failures instead of propagating them.
func TestSink_NeverRaises(t *testing.T) {
	t.Parallel()

	require.False(t, New(failingWriter{}).Append("x"))
	require.False(t, New(panickingWriter{}).Append("x"))

	var nilSink *Sink
	require.False(t, nilSink.Append("x"))
	require.NoError(t, nilSink.Close())
}

// TestOpen_WritesFile appends to the configured path and discards without one.
func TestOpen_WritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "responses.log")

	s := Open(Options{Path: path})
	require.True(t, s.Append("status: CheckStatus -> OK"))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "status: CheckStatus -> OK")

	discard := Open(Options{})
	require.True(t, discard.Append("dropped"))
	require.NoError(t, discard.Close())
}

// TestNewPlain writes lines verbatim.
func TestNewPlain(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	require.True(t, NewPlain(&buf).Append("POST https://x.workers.dev/hook - Ok @ 2026/2/9 14:10:39"))
	require.Equal(t, "POST https://x.workers.dev/hook - Ok @ 2026/2/9 14:10:39\n", buf.String())
}

package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseLine reads method, URL, status and the local timestamp.
func TestParseLine(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 2, 9, 14, 11, 0, 0, time.Local)

	ev, ok := ParseLine("POST https://x.workers.dev/api/autostand-webhook - Ok @ 2026/2/9 14:10:39", received)
	require.True(t, ok)
	require.Equal(t, "POST", ev.Method)
	require.Equal(t, "https://x.workers.dev/api/autostand-webhook", ev.URL)
	require.Equal(t, "Ok", ev.StatusText)
	require.True(t, ev.IsOk())
	require.False(t, ev.IsError())
	require.Equal(t, time.Date(2026, 2, 9, 14, 10, 39, 0, time.Local), ev.LoggedAt)
	require.Equal(t, ev.LoggedAt, ev.At())
}

// TestParseLine_Variants covers missing and unparseable timestamps and foreign lines.
func TestParseLine_Variants(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 2, 9, 14, 11, 0, 0, time.Local)

	ev, ok := ParseLine("GET https://x.workers.dev/status - Error 500", received)
	require.True(t, ok)
	require.Equal(t, "Error 500", ev.StatusText)
	require.True(t, ev.IsError())
	require.True(t, ev.LoggedAt.IsZero())
	require.Equal(t, received, ev.At())

	ev, ok = ParseLine("POST https://x.workers.dev/hook - Ok @ sometime", received)
	require.True(t, ok)
	require.True(t, ev.LoggedAt.IsZero())
	require.Equal(t, received, ev.At())

	ev, ok = ParseLine("POST https://x.workers.dev/hook - Ok @ 2/9/2026, 2:10:39 PM", received)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 2, 9, 14, 10, 39, 0, time.Local), ev.LoggedAt)

	for _, line := range []string{
		"",
		"Connected to autostand-webhook, waiting for logs...",
		"  (log) received webhook",
		"POST https://x.workers.dev/hook Ok",
	} {
		_, ok = ParseLine(line, received)
		require.False(t, ok, line)
	}
}

// TestClassifyStatus maps prefixes and failure mentions.
func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]Status{
		"Ok":                         StatusOk,
		"OK 200":                     StatusOk,
		"Error":                      StatusError,
		"Err: timeout":               StatusError,
		"Exception: upstream failed": StatusError,
		"Canceled":                   StatusOther,
		"Unknown":                    StatusOther,
	}

	for text, want := range cases {
		require.Equal(t, want, ClassifyStatus(text), text)
	}
}

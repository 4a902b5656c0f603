package watcher

import (
	"regexp"
	"strings"
	"time"
)

// Status classifies the status text of an event line.
type Status int

const (
	// StatusOther is any status that is neither Ok nor Error.
	StatusOther Status = iota
	// StatusOk is a successful delivery.
	StatusOk
	// StatusError is a failed delivery.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "other"
	}
}

// Event is one parsed line of the event stream.
type Event struct {
	Method     string
	URL        string
	StatusText string
	Status     Status
	// ReceivedAt is when the line was read.
	ReceivedAt time.Time
	// LoggedAt is the timestamp printed on the line; zero when absent or unparseable.
	LoggedAt time.Time
	// Line is the raw line text.
	Line string
}

// IsOk reports whether the event confirms success.
func (e Event) IsOk() bool {
	return e.Status == StatusOk
}

// IsError reports whether the event reports a failure.
func (e Event) IsError() bool {
	return e.Status == StatusError
}

// At is LoggedAt when present, otherwise ReceivedAt.
func (e Event) At() time.Time {
	if e.LoggedAt.IsZero() {
		return e.ReceivedAt
	}

	return e.LoggedAt
}

// linePattern matches "<METHOD> <URL> - <STATUS>[ @ <TIMESTAMP>]".
var linePattern = regexp.MustCompile(`^\s*([A-Z]+)\s+(\S+)\s+-\s+(.+?)(?:\s+@\s+(.+?))?\s*$`)

// timestampLayouts are tried in order; all are read in local time.
var timestampLayouts = []string{ //nolint:gochecknoglobals // Read-only lookup table.
	"2006/1/2 15:04:05",
	"2006/1/2 3:04:05 PM",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006, 3:04:05 PM",
	"2006-01-02 15:04:05.000",
}

// ParseLine parses one event line. Lines of any other shape are rejected.
func ParseLine(line string, receivedAt time.Time) (Event, bool) {
	match := linePattern.FindStringSubmatch(line)
	if match == nil {
		return Event{}, false
	}

	ev := Event{
		Method:     match[1],
		URL:        match[2],
		StatusText: strings.TrimSpace(match[3]),
		ReceivedAt: receivedAt,
		Line:       line,
	}
	ev.Status = ClassifyStatus(ev.StatusText)

	if match[4] != "" {
		if ts, ok := ParseTimestamp(match[4]); ok {
			ev.LoggedAt = ts
		}
	}

	return ev, true
}

// ClassifyStatus maps status text to Ok, Error or Other.
func ClassifyStatus(text string) Status {
	switch {
	case strings.HasPrefix(text, "Ok"), strings.HasPrefix(text, "OK"):
		return StatusOk
	case strings.HasPrefix(text, "Error"), strings.HasPrefix(text, "Err"),
		strings.Contains(strings.ToLower(text), "fail"):
		return StatusError
	default:
		return StatusOther
	}
}

// ParseTimestamp reads s against the known local-time layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}

	return time.Time{}, false
}

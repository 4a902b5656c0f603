// Package responselog records controller responses to an append-only file.
package responselog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oshokin/autostand/internal/logger"
)

const (
	// DefaultMaxSizeMB is the size at which the log file is rotated.
	DefaultMaxSizeMB = 10
	// DefaultMaxBackups is how many rotated files are kept.
	DefaultMaxBackups = 3
)

// Options configures a file-backed Sink.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// Plain writes lines without the timestamp prefix.
	Plain bool
}

// Sink appends lines to a writer under one lock. Append never panics.
type Sink struct {
	mu    sync.Mutex
	out   io.Writer
	now   func() time.Time
	plain bool
}

// Open creates a Sink writing to a rotating file. An empty path yields a
// Sink that discards everything.
func Open(opts Options) *Sink {
	if strings.TrimSpace(opts.Path) == "" {
		return New(io.Discard)
	}

	newSink := New
	if opts.Plain {
		newSink = NewPlain
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}

	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}

	return newSink(&lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
	})
}

// New creates a Sink over w.
func New(w io.Writer) *Sink {
	return &Sink{
		out: w,
		now: time.Now,
	}
}

// NewPlain creates a Sink over w that writes lines verbatim.
func NewPlain(w io.Writer) *Sink {
	s := New(w)
	s.plain = true

	return s
}

// Append writes one timestamped line and reports whether it succeeded.
func (s *Sink) Append(text string) (ok bool) {
	if s == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	line := strings.TrimRight(text, "\r\n") + "\n"
	if !s.plain {
		line = s.now().Format("2006/1/2 15:04:05") + " " + line
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := io.WriteString(s.out, line)

	return err == nil
}

// Appendf formats and appends a line, logging a failed write at debug level.
func (s *Sink) Appendf(ctx context.Context, format string, args ...any) bool {
	ok := s.Append(fmt.Sprintf(format, args...))
	if !ok {
		logger.DebugKV(ctx, "Response log append failed")
	}

	return ok
}

// Close releases the underlying file, if any.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.out.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

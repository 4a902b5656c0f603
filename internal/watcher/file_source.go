package watcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/autostand/internal/logger"
)

// FileSource follows a log file and emits the lines appended after Start.
// The file may not exist yet; it is picked up once created.
type FileSource struct {
	path string

	notify   *fsnotify.Watcher
	stopOnce sync.Once
	finished chan struct{}

	offset  int64
	partial []byte
}

// NewFileSource creates a source following path.
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:     path,
		finished: make(chan struct{}),
	}
}

// Start implements Source.
func (s *FileSource) Start(ctx context.Context, emit func(line string)) error {
	path, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.path, err)
	}

	s.path = path

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	// Watch the directory so the file can be created or rotated later.
	if err = notify.Add(filepath.Dir(path)); err != nil {
		_ = notify.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		s.offset = info.Size()
	}

	s.notify = notify

	logger.DebugKV(ctx, "Following event file", "path", path, "offset", s.offset)

	go s.run(ctx, emit)

	return nil
}

// Wait implements Source.
func (s *FileSource) Wait() error {
	if s.notify == nil {
		return nil
	}

	<-s.finished

	return nil
}

// Stop implements Source.
func (s *FileSource) Stop() error {
	if s.notify == nil {
		return nil
	}

	var err error

	s.stopOnce.Do(func() {
		err = s.notify.Close()
	})

	<-s.finished

	return err
}

func (s *FileSource) run(ctx context.Context, emit func(line string)) {
	defer close(s.finished)

	for {
		select {
		case event, ok := <-s.notify.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != s.path {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if err := s.read(emit); err != nil {
					logger.DebugKV(ctx, "Event file read failed", "path", s.path, "error", err)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				s.offset = 0
				s.partial = nil
			}
		case err, ok := <-s.notify.Errors:
			if !ok {
				return
			}

			logger.WarnKV(ctx, "Event file watcher error", "path", s.path, "error", err)
		}
	}
}

// read emits every complete line appended since the last read.
func (s *FileSource) read(emit func(line string)) error {
	file, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	// Truncated or replaced: start over.
	if info.Size() < s.offset {
		s.offset = 0
		s.partial = nil
	}

	if _, err = file.Seek(s.offset, io.SeekStart); err != nil {
		return err
	}

	chunk, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	s.offset += int64(len(chunk))
	data := append(s.partial, chunk...)

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}

		emit(string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}

	s.partial = bytes.Clone(data)

	return nil
}

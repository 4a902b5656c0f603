package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/autostand/internal/logger"
)

// DefaultStopGrace is how long a watch process may take to exit after an
// interrupt before it is killed.
const DefaultStopGrace = 2 * time.Second

// maxLineSize bounds a single event line.
const maxLineSize = 1 << 20

var errNoCommand = errors.New("watch command is empty")

// Source produces event lines.
type Source interface {
	// Start begins producing lines into emit and returns once the source runs.
	Start(ctx context.Context, emit func(line string)) error
	// Wait blocks until the source has stopped.
	Wait() error
	// Stop terminates the source.
	Stop() error
}

// CommandSource reads lines from the stdout and stderr of a subprocess.
type CommandSource struct {
	name  string
	args  []string
	grace time.Duration

	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// NewCommandSource creates a source running name with args.
func NewCommandSource(name string, args ...string) *CommandSource {
	return &CommandSource{
		name:   name,
		args:   args,
		grace:  DefaultStopGrace,
		exited: make(chan struct{}),
	}
}

// WithGrace overrides DefaultStopGrace.
func (s *CommandSource) WithGrace(grace time.Duration) *CommandSource {
	s.grace = grace
	return s
}

// Start implements Source.
func (s *CommandSource) Start(ctx context.Context, emit func(line string)) error {
	if strings.TrimSpace(s.name) == "" {
		return errNoCommand
	}

	//nolint:gosec // The watch command comes from the operator's configuration.
	s.cmd = exec.Command(s.name, s.args...)

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err = s.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.name, err)
	}

	logger.DebugKV(ctx, "Watch process started", "command", s.name, "pid", s.cmd.Process.Pid)

	var group errgroup.Group

	group.Go(func() error { return pump(stdout, emit) })
	group.Go(func() error { return pump(stderr, emit) })

	go func() {
		defer close(s.exited)

		// Pipes must be drained before Wait closes them.
		pumpErr := group.Wait()
		s.err = errors.Join(pumpErr, s.cmd.Wait())
	}()

	return nil
}

// Wait implements Source.
func (s *CommandSource) Wait() error {
	if s.cmd == nil {
		return nil
	}

	<-s.exited

	return s.err
}

// Stop interrupts the process and kills it if it is still running after the grace period.
func (s *CommandSource) Stop() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	select {
	case <-s.exited:
		return nil
	default:
	}

	pid := s.cmd.Process.Pid

	// Interrupt is unsupported on some platforms; the kill below covers them.
	_ = s.cmd.Process.Signal(os.Interrupt)

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-s.exited:
		return nil
	case <-timer.C:
	}

	if !processRunning(pid) {
		return nil
	}

	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill watch process %d: %w", pid, err)
	}

	return nil
}

// processRunning reports whether pid is still in the process table.
func processRunning(pid int) bool {
	process, err := ps.FindProcess(pid)
	if err != nil {
		// Unknown: assume it is running so it gets killed.
		return true
	}

	return process != nil
}

func pump(r io.Reader, emit func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		emit(scanner.Text())
	}

	err := scanner.Err()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}

	return err
}

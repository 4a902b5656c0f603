package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/autostand/internal/auth"
	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/remote"
	"github.com/oshokin/autostand/internal/resolve"
	"github.com/oshokin/autostand/internal/responselog"
	"github.com/oshokin/autostand/internal/service/orchestrator"
	"github.com/oshokin/autostand/internal/watcher"
)

// Command is a one-shot client command.
type Command string

const (
	// CommandUp raises the stand.
	CommandUp Command = "up"
	// CommandDown lowers the stand.
	CommandDown Command = "down"
	// CommandStatus prints the stand state.
	CommandStatus Command = "status"
	// CommandBattery prints the battery level.
	CommandBattery Command = "battery"
)

// callTimeoutMargin is added to the operation timeout for each remote call,
// so a controller honouring the timeout argument answers first.
const callTimeoutMargin = 5 * time.Second

var (
	errUnknownCommand  = errors.New("unknown command")
	errUnknownLogLevel = errors.New("unknown log level")
)

// Options configures the client commands.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// EnvPath to the .env overlay.
	EnvPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Confirm overrides the configured confirm mode when set.
	Confirm string
	// Timeout overrides the configured operation timeout when positive.
	Timeout time.Duration
	// Out receives rendered output; defaults to stdout.
	Out io.Writer
}

// Session holds everything one client process talks through.
type Session struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator

	handle  *remote.Handle
	watcher *watcher.Watcher
	sink    *responselog.Sink
}

// Open loads settings, dials the controller and starts the confirmation
// watcher when the policy needs one.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = applyOverrides(cfg, opts); err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	endpoint, err := remote.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	actor, err := auth.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Could not detect actor", "error", err)
	}

	s := &Session{
		Config: cfg,
		sink: responselog.Open(responselog.Options{
			Path:       cfg.ResponseLog.Path,
			MaxSizeMB:  cfg.ResponseLog.MaxSizeMB,
			MaxBackups: cfg.ResponseLog.MaxBackups,
		}),
	}

	s.handle, err = remote.Dial(ctx, endpoint,
		remote.WithResponseLog(s.sink),
		remote.WithToken(cfg.TokenSecret, actor),
		remote.WithCallTimeout(callTimeout(cfg.Timeout)),
	)
	if err != nil {
		_ = s.sink.Close()
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	policy := orchestrator.ChoosePolicy(cfg.Confirm.Mode, endpoint.Host, cfg.Confirm.HostPatterns)

	filter := cfg.Confirm.URLFilter
	if filter == "" {
		filter = endpoint.Host
	}

	if policy == orchestrator.PolicyConfirmed {
		s.watcher = startWatcher(ctx, cfg.Watch)
	}

	logger.InfoKV(ctx, "Connected to stand controller",
		"endpoint", endpoint.String(),
		"stand_id", cfg.StandID,
		"policy", policy.String(),
		"methods", len(s.handle.Methods()))

	s.Orchestrator = orchestrator.New(resolve.New(capability.NewProbe(s.handle)), s.confirmer(), orchestrator.Options{
		StandID:        cfg.StandID,
		Timeout:        cfg.Timeout,
		Policy:         policy,
		ConfirmTimeout: cfg.Confirm.Timeout,
		URLFilter:      filter,
	})

	return s, nil
}

// Close stops the watcher and releases the connection and log file.
func (s *Session) Close() error {
	s.watcher.Dispose()

	return errors.Join(s.handle.Close(), s.sink.Close())
}

func (s *Session) confirmer() orchestrator.Confirmer {
	if s.watcher == nil {
		return nil
	}

	return s.watcher
}

// Run executes one command and renders its result.
func Run(ctx context.Context, opts *Options, command Command) error {
	ctx = logger.WithName(ctx, "autostand")

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	session, err := Open(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close session", "error", closeErr)
		}
	}()

	o := session.Orchestrator

	switch command {
	case CommandUp, CommandDown:
		outcome, err := actuate(ctx, o, command)
		if err != nil {
			_, _ = fmt.Fprintln(out, RenderError(err))
			return err
		}

		_, _ = fmt.Fprintln(out, RenderOutcome(outcome))
	case CommandStatus:
		state, err := o.Status(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(out, RenderError(err))
			return err
		}

		_, _ = fmt.Fprintln(out, RenderState("status", state))
	case CommandBattery:
		level, err := o.Battery(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(out, RenderError(err))
			return err
		}

		_, _ = fmt.Fprintln(out, RenderBattery(level))
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, command)
	}

	return nil
}

func actuate(ctx context.Context, o *orchestrator.Orchestrator, command Command) (*orchestrator.Outcome, error) {
	if command == CommandUp {
		return o.Raise(ctx)
	}

	return o.Lower(ctx)
}

// startWatcher starts the configured event source. Failures leave the
// watcher unavailable and are only logged.
func startWatcher(ctx context.Context, settings config.Watch) *watcher.Watcher {
	w := watcher.New()

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok && settings.LogLevel != "" {
		ctx = logger.WithContextLevel(ctx, level)
	}

	if !settings.Enabled() {
		logger.InfoKV(ctx, "No watch source configured, confirmation disabled")
		return w
	}

	var source watcher.Source = watcher.NewFileSource(settings.File)
	if settings.Command != "" {
		source = watcher.NewCommandSource(settings.Command, settings.Args...)
	}

	// Start failures are logged by the watcher.
	_ = w.Start(ctx, source)

	return w
}

// callTimeout bounds one remote call for an operation timeout.
func callTimeout(operation time.Duration) time.Duration {
	return operation + callTimeoutMargin
}

func applyOverrides(cfg *config.Config, opts *Options) error {
	if opts.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(opts.LogLevel); !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, opts.LogLevel)
		}

		cfg.LogLevel = opts.LogLevel
	}

	if opts.Confirm != "" {
		mode, err := config.ParseConfirmMode(opts.Confirm)
		if err != nil {
			return err
		}

		cfg.Confirm.Mode = mode
	}

	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}

	return nil
}

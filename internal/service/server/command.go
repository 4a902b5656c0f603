package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	standgrpc "github.com/oshokin/autostand/internal/api/grpc/stand"
	"github.com/oshokin/autostand/internal/auth"
	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/logger"
	repository "github.com/oshokin/autostand/internal/repository/state"
	"github.com/oshokin/autostand/internal/responselog"
)

// Options controls the autostand-sim process and configuration.
type Options struct {
	// ConfigPath specifies the path to the simulator settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured gRPC listen address.
	ListenAddress string
	// Profile overrides the configured method surface.
	Profile string
	// StateFile overrides the configured state file.
	StateFile string
	// EventsFile overrides the configured events file.
	EventsFile string
}

// Run loads settings, starts the simulated controller and blocks until ctx
// is canceled or the server stops.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "autostand-sim")

	settings, err := config.LoadSimulator(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	if err = config.ValidateSimulator(settings); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	return Serve(ctx, lis, settings)
}

// Serve runs the simulated controller on lis until ctx is canceled.
func Serve(ctx context.Context, lis net.Listener, settings *config.Simulator) error {
	events := responselog.Open(responselog.Options{Path: settings.EventsFile, Plain: true})
	defer func() {
		if err := events.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close events file", "error", err)
		}
	}()

	sim, err := newSimulator(ctx, simulatorOptions{
		standID:    settings.StandID,
		motion:     settings.MotionDuration,
		webhookURL: settings.WebhookURL,
		obstructed: settings.Obstructed,
	}, repository.NewFileRepository(settings.StateFile), events)
	if err != nil {
		return fmt.Errorf("initialise simulator: %w", err)
	}

	handle, err := surface(Profile(settings.Profile), sim)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryServerInterceptor(settings.TokenSecret)))
	standgrpc.NewServer(handle).Register(grpcServer)

	logger.InfoKV(ctx, "Stand simulator listening",
		"listen_address", lis.Addr().String(),
		"profile", settings.Profile,
		"stand_id", settings.StandID,
		"state_file", settings.StateFile,
		"events_file", settings.EventsFile,
		"auth", settings.TokenSecret != "")

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		sim.Close()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// applyOverrides replaces settings with the non-empty command line values.
func applyOverrides(settings *config.Simulator, opts *Options) {
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.Profile != "" {
		settings.Profile = opts.Profile
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.EventsFile != "" {
		settings.EventsFile = opts.EventsFile
	}
}

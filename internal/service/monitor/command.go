package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/service/client"
)

// Options controls the monitor polling behavior and configuration.
type Options struct {
	Client client.Options
	// Interval defines the pause between status checks.
	Interval time.Duration
	// LowBattery is the level at and below which a warning is logged.
	LowBattery stand.Battery
}

const (
	// DefaultInterval is the default polling interval.
	DefaultInterval = 5 * time.Second
	// DefaultLowBattery is the default warning threshold.
	DefaultLowBattery stand.Battery = 20
)

// StatusReader reads the stand state.
type StatusReader interface {
	Status(ctx context.Context) (*stand.State, error)
}

// Run connects to the controller and polls the stand until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "autostand-monitor")

	session, err := client.Open(ctx, &opts.Client)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	defer func() {
		_ = session.Close()
	}()

	return Poll(ctx, session.Orchestrator, opts.Interval, opts.LowBattery)
}

// Poll checks the status every interval until ctx is canceled. Failed checks
// are logged and polling continues.
func Poll(ctx context.Context, reader StatusReader, interval time.Duration, lowBattery stand.Battery) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if lowBattery <= 0 {
		lowBattery = DefaultLowBattery
	}

	logger.InfoKV(ctx, "Polling stand status", "interval", interval.String())

	check := func() {
		if err := checkState(ctx, reader, lowBattery); err != nil {
			logger.ErrorKV(ctx, "Status check failed", "error", err)
		}
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			check()
		}
	}
}

// checkState logs one status reading and warns on a low battery.
func checkState(ctx context.Context, reader StatusReader, lowBattery stand.Battery) error {
	state, err := reader.Status(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Stand status",
		"stand_state", state.StandState,
		"arm_state", state.ArmState,
		"operate", state.Operate,
		"battery", state.Battery.String(),
		"ultrasonic", state.UltrasonicDetected.String())

	if state.Battery.Known() && state.Battery <= lowBattery {
		logger.WarnKV(ctx, "Battery low", "battery", state.Battery.String())
	}

	return nil
}

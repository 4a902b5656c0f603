package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/service/client"
	"github.com/oshokin/autostand/internal/service/monitor"
)

// TestMonitor_PollsAndReturnsOnCancel runs the monitor against a live simulator and cancels it.
func TestMonitor_PollsAndReturnsOnCancel(t *testing.T) {
	t.Parallel()

	sim := startSimulator(t, "v2", false)
	cfgPath := writeClientConfig(t, sim, config.ConfirmAuto)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- monitor.Run(ctx, &monitor.Options{
			Client: client.Options{
				ConfigPath: cfgPath,
				EnvPath:    filepath.Join(filepath.Dir(cfgPath), "missing.env"),
			},
			Interval: 50 * time.Millisecond,
		})
	}()

	// Let a few checks go through, then stop.
	time.Sleep(200 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
}

package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/service/server"
)

// simulator is a running stand simulator and the files it writes.
type simulator struct {
	addr       string
	eventsFile string
	stateFile  string
}

// startSimulator runs the simulator on a loopback port until the test ends.
func startSimulator(t *testing.T, profile string, obstructed bool) *simulator {
	t.Helper()

	dir := t.TempDir()
	settings := &config.Simulator{
		Profile:        profile,
		StandID:        4,
		MotionDuration: 200 * time.Millisecond,
		StateFile:      filepath.Join(dir, "state.json"),
		EventsFile:     filepath.Join(dir, "events.log"),
		Obstructed:     obstructed,
	}
	require.NoError(t, config.ValidateSimulator(settings))

	lc := net.ListenConfig{}

	lis, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	go func() { served <- server.Serve(ctx, lis, settings) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-served)
	})

	return &simulator{
		addr:       lis.Addr().String(),
		eventsFile: settings.EventsFile,
		stateFile:  settings.StateFile,
	}
}

// writeClientConfig saves client settings targeting sim and returns their path.
func writeClientConfig(t *testing.T, sim *simulator, mode config.ConfirmMode) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "autostand-settings.yaml")

	require.NoError(t, config.Save(path, &config.Config{
		Endpoint: sim.addr,
		StandID:  4,
		Timeout:  5 * time.Second,
		ResponseLog: config.ResponseLog{
			Path: filepath.Join(dir, "responses.log"),
		},
		Confirm: config.Confirm{
			Mode:      mode,
			Timeout:   5 * time.Second,
			URLFilter: "workers.dev",
		},
		Watch: config.Watch{File: sim.eventsFile},
	}))

	return path
}

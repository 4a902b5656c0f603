package server

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/autostand/internal/domain/stand"
	repository "github.com/oshokin/autostand/internal/repository/state"
	"github.com/oshokin/autostand/internal/responselog"
)

const testWebhook = "https://autostand.workers.dev/api/autostand-webhook"

// lines is a goroutine-safe line collector.
type lines struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (l *lines) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.Write(p)
}

func (l *lines) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	text := strings.TrimSpace(l.buf.String())
	if text == "" {
		return nil
	}

	return strings.Split(text, "\n")
}

func newTestSimulator(t *testing.T, obstructed bool, repo repository.Repository) (*simulator, *lines) {
	t.Helper()

	var out lines

	sim, err := newSimulator(context.Background(), simulatorOptions{
		standID:    7,
		motion:     2 * time.Second,
		webhookURL: testWebhook,
		obstructed: obstructed,
	}, repo, responselog.NewPlain(&out))
	require.NoError(t, err)

	return sim, &out
}

func vendorCode(t *testing.T, err error) string {
	t.Helper()

	var failure *domain.RemoteFailure
	require.ErrorAs(t, err, &failure)

	return failure.VendorCode
}

// TestSimulator_ActuateWaitsForMotion blocks for the motion time and emits an Ok line.
func TestSimulator_ActuateWaitsForMotion(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, out := newTestSimulator(t, false, nil)
		defer sim.Close()

		start := time.Now()

		result, err := sim.actuate(t.Context(), 7, directionUp, true, 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, time.Since(start))

		st, ok := result.(*domain.State)
		require.True(t, ok)
		require.Equal(t, "UP", st.StandState)
		require.Equal(t, "EXTENDED", st.ArmState)
		require.Equal(t, domain.Battery(90), st.Battery)
		require.False(t, st.Operate)

		events := out.All()
		require.Len(t, events, 1)
		require.True(t, strings.HasPrefix(events[0], "POST "+testWebhook+" - Ok @ "), events[0])
	})
}

// TestSimulator_RejectsBusyAndUnknownStand reports vendor codes for a moving or missing stand.
func TestSimulator_RejectsBusyAndUnknownStand(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, _ := newTestSimulator(t, false, nil)
		defer sim.Close()

		code, err := sim.actuate(t.Context(), 7, directionUp, false, 0)
		require.NoError(t, err)
		require.NotEmpty(t, code)

		st, err := sim.status(t.Context(), 7)
		require.NoError(t, err)
		require.Equal(t, "MOVING_UP", st.StandState)
		require.True(t, st.Operate)

		_, err = sim.actuate(t.Context(), 7, directionDown, true, time.Second)
		require.Equal(t, CodeStandBusy, vendorCode(t, err))

		_, err = sim.status(t.Context(), 8)
		require.Equal(t, CodeStandNotFound, vendorCode(t, err))

		time.Sleep(2 * time.Second)
		synctest.Wait()

		_, err = sim.actuate(t.Context(), 7, directionDown, false, 0)
		require.NoError(t, err)
	})
}

// TestSimulator_TimeoutLeavesMotionRunning returns OPERATION_TIMEOUT while the stand keeps moving.
func TestSimulator_TimeoutLeavesMotionRunning(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, out := newTestSimulator(t, false, nil)
		defer sim.Close()

		_, err := sim.actuate(t.Context(), 7, directionUp, true, time.Second)
		require.Equal(t, CodeOperationTimeout, vendorCode(t, err))
		require.Empty(t, out.All())

		time.Sleep(time.Second)
		synctest.Wait()

		st, err := sim.status(t.Context(), 7)
		require.NoError(t, err)
		require.Equal(t, "UP", st.StandState)
		require.Len(t, out.All(), 1)
	})
}

// TestSimulator_Transactions resolves a no-wait actuation through both accessors.
func TestSimulator_Transactions(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, _ := newTestSimulator(t, false, nil)
		defer sim.Close()

		raw, err := sim.actuate(t.Context(), 7, directionUp, false, 0)
		require.NoError(t, err)

		code, ok := raw.(string)
		require.True(t, ok)

		pending, err := sim.transactionResult(code)
		require.NoError(t, err)
		require.Equal(t, "pending", pending["status"])

		done, err := sim.waitTransaction(t.Context(), code, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, "done", done["status"])
		require.Equal(t, "UP", done["state"].(*domain.State).StandState)

		again, err := sim.transactionResult(code)
		require.NoError(t, err)
		require.Equal(t, "done", again["status"])

		_, err = sim.transactionResult("missing")
		require.Equal(t, CodeTransactionNotFound, vendorCode(t, err))
	})
}

// TestSimulator_ObstructedLowering fails with ULTRASONIC_BLOCKED and an Error line.
func TestSimulator_ObstructedLowering(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, out := newTestSimulator(t, true, nil)
		defer sim.Close()

		_, err := sim.actuate(t.Context(), 7, directionDown, true, 10*time.Second)
		require.Equal(t, CodeUltrasonicBlocked, vendorCode(t, err))

		st, err := sim.status(t.Context(), 7)
		require.NoError(t, err)
		require.Equal(t, domain.Yes, st.UltrasonicDetected)
		require.Equal(t, "STOPPED", st.StandState)
		require.Equal(t, domain.Battery(100), st.Battery)

		events := out.All()
		require.Len(t, events, 1)
		require.Contains(t, events[0], " - Error ULTRASONIC_BLOCKED @ ")
	})
}

// TestSimulator_BatteryFloor never drains below ten percent.
func TestSimulator_BatteryFloor(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, _ := newTestSimulator(t, false, nil)
		defer sim.Close()

		for i := range 12 {
			direction := directionUp
			if i%2 == 1 {
				direction = directionDown
			}

			_, err := sim.actuate(t.Context(), 7, direction, true, 0)
			require.NoError(t, err)
		}

		level, err := sim.battery(t.Context(), 7)
		require.NoError(t, err)
		require.Equal(t, 10, level)
	})
}

// TestSimulator_PersistsState restores the stand from the state file.
func TestSimulator_PersistsState(t *testing.T) {
	t.Parallel()

	repo := repository.NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	synctest.Test(t, func(t *testing.T) {
		sim, _ := newTestSimulator(t, false, repo)

		_, err := sim.actuate(t.Context(), 7, directionUp, true, 0)
		require.NoError(t, err)
		sim.Close()
	})

	restored, _ := newTestSimulator(t, false, repo)
	defer restored.Close()

	st, err := restored.status(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "UP", st.StandState)
	require.Equal(t, domain.Battery(90), st.Battery)
}

// TestSimulator_CloseInterruptsMotion releases waiters with SHUTTING_DOWN.
func TestSimulator_CloseInterruptsMotion(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sim, _ := newTestSimulator(t, false, nil)

		errs := make(chan error, 1)

		go func() {
			_, err := sim.actuate(context.Background(), 7, directionUp, true, 0)
			errs <- err
		}()

		synctest.Wait()
		sim.Close()

		require.Equal(t, CodeShuttingDown, vendorCode(t, <-errs))

		_, err := sim.actuate(context.Background(), 7, directionUp, false, 0)
		require.Equal(t, CodeShuttingDown, vendorCode(t, err))
	})
}

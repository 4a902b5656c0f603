package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
)

type readerFunc func(ctx context.Context) (*stand.State, error)

func (f readerFunc) Status(ctx context.Context) (*stand.State, error) {
	return f(ctx)
}

func observe(ctx context.Context) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)

	return logger.ToContext(ctx, zap.New(core).Sugar()), logs
}

// TestPoll_ChecksEveryInterval reads once immediately and then on every tick.
func TestPoll_ChecksEveryInterval(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		reader := readerFunc(func(context.Context) (*stand.State, error) {
			calls.Add(1)
			return &stand.State{ID: 1, StandState: "UP", Battery: 80}, nil
		})

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second+time.Millisecond)
		defer cancel()

		ctx, logs := observe(ctx)

		require.NoError(t, Poll(ctx, reader, 5*time.Second, 0))
		require.Equal(t, int32(3), calls.Load())
		require.Equal(t, 3, logs.FilterMessage("Stand status").Len())
		require.Zero(t, logs.FilterMessage("Battery low").Len())
	})
}

// TestPoll_WarnsOnLowBattery warns at the threshold but not for an unknown level.
func TestPoll_WarnsOnLowBattery(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		levels := []stand.Battery{20, stand.BatteryUnknown, 30}

		var calls atomic.Int32

		reader := readerFunc(func(context.Context) (*stand.State, error) {
			n := calls.Add(1)
			return &stand.State{ID: 1, StandState: "DOWN", Battery: levels[(n-1)%3]}, nil
		})

		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second+time.Millisecond)
		defer cancel()

		ctx, logs := observe(ctx)

		require.NoError(t, Poll(ctx, reader, time.Second, DefaultLowBattery))

		warnings := logs.FilterMessage("Battery low").All()
		require.Len(t, warnings, 1)
		require.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	})
}

// TestPoll_KeepsGoingAfterFailure logs failed reads and continues polling.
func TestPoll_KeepsGoingAfterFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32

		reader := readerFunc(func(context.Context) (*stand.State, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("unavailable")
			}

			return &stand.State{ID: 1, StandState: "UP", Battery: 90}, nil
		})

		ctx, cancel := context.WithTimeout(t.Context(), time.Second+time.Millisecond)
		defer cancel()

		ctx, logs := observe(ctx)

		require.NoError(t, Poll(ctx, reader, time.Second, 0))
		require.Equal(t, 1, logs.FilterMessage("Status check failed").Len())
		require.Equal(t, 1, logs.FilterMessage("Stand status").Len())
	})
}

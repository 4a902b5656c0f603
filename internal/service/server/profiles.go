package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/autostand/internal/capability"
)

// Profile names a controller generation with its own method surface.
type Profile string

const (
	// ProfileV1 has only async actuation, a wrapped status and RequestOperation.
	ProfileV1 Profile = "v1"
	// ProfileV2 uses Open/Close with a wait flag and WaitForTransaction.
	ProfileV2 Profile = "v2"
	// ProfileV3 uses Up/Down, Check* and GetTransaction.
	ProfileV3 Profile = "v3"
)

var errUnknownProfile = errors.New("unknown profile")

//nolint:gochecknoglobals // Parameter descriptors shared by the profiles.
var (
	idParam32   = capability.Param{Name: "id", Kind: capability.KindInt32}
	idParam64   = capability.Param{Name: "id", Kind: capability.KindInt64}
	timeout32   = capability.Param{Name: "timeout", Kind: capability.KindInt32}
	timeout64   = capability.Param{Name: "timeout", Kind: capability.KindInt64}
	waitParam   = capability.Param{Name: "wait", Kind: capability.KindBool}
	codeParam   = capability.Param{Name: "transaction_id", Kind: capability.KindString}
	opEnumParam = capability.Param{Name: "operation", Kind: capability.KindEnum, Enum: []string{directionUp, directionDown}}
)

// surface builds the method table of profile on top of sim.
func surface(profile Profile, sim *simulator) (*capability.Static, error) {
	switch profile {
	case ProfileV1:
		return surfaceV1(sim), nil
	case ProfileV2:
		return surfaceV2(sim), nil
	case ProfileV3:
		return surfaceV3(sim), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownProfile, profile)
	}
}

func surfaceV3(sim *simulator) *capability.Static {
	actuate := func(direction string, wait bool) capability.Func {
		return func(ctx context.Context, args []any) (any, error) {
			var timeout time.Duration
			if len(args) > 1 {
				timeout = seconds(args[1])
			}

			return sim.actuate(ctx, intArg(args[0]), direction, wait, timeout)
		}
	}

	status := func(ctx context.Context, args []any) (any, error) {
		return sim.status(ctx, intArg(args[0]))
	}

	battery := func(ctx context.Context, args []any) (any, error) {
		return sim.battery(ctx, intArg(args[0]))
	}

	return capability.NewStatic().
		Add(method("Up", false, idParam32, timeout32), actuate(directionUp, true)).
		Add(method("Down", false, idParam32, timeout32), actuate(directionDown, true)).
		Add(method("UpAsync", true, idParam32), actuate(directionUp, true)).
		Add(method("DownAsync", true, idParam32), actuate(directionDown, true)).
		Add(method("CheckStatus", false, idParam32), status).
		Add(method("CheckStatusAsync", true, idParam32), status).
		Add(method("CheckBattery", false, idParam32), battery).
		Add(method("CheckBatteryAsync", true, idParam32), battery).
		Add(method("RequestOperation", false, idParam32, opEnumParam), requestOperation(sim)).
		Add(method("GetTransaction", false, codeParam), func(_ context.Context, args []any) (any, error) {
			return sim.transactionResult(args[0].(string))
		})
}

func surfaceV2(sim *simulator) *capability.Static {
	open := func(direction string, withTimeout bool) capability.Func {
		return func(ctx context.Context, args []any) (any, error) {
			wait, _ := args[1].(bool)

			var timeout time.Duration
			if withTimeout {
				timeout = seconds(args[2])
			}

			result, err := sim.actuate(ctx, intArg(args[0]), direction, wait, timeout)
			if err != nil || wait {
				return result, err
			}

			return map[string]any{"transaction_id": result, "status": "pending"}, nil
		}
	}

	return capability.NewStatic().
		Add(method("Open", false, idParam32, waitParam, timeout32), open(directionUp, true)).
		Add(method("Close", false, idParam32, waitParam, timeout32), open(directionDown, true)).
		Add(method("OpenAsync", true, idParam32, waitParam), open(directionUp, false)).
		Add(method("CloseAsync", true, idParam32, waitParam), open(directionDown, false)).
		Add(method("GetStatus", false, idParam64, timeout64), func(ctx context.Context, args []any) (any, error) {
			return sim.status(ctx, intArg(args[0]))
		}).
		Add(method("GetBattery", false, idParam64), func(ctx context.Context, args []any) (any, error) {
			level, err := sim.battery(ctx, intArg(args[0]))
			if err != nil {
				return nil, err
			}

			return map[string]any{"battery_level": level}, nil
		}).
		Add(method("WaitForTransaction", false, codeParam, timeout32), func(ctx context.Context, args []any) (any, error) {
			return sim.waitTransaction(ctx, args[0].(string), seconds(args[1]))
		})
}

func surfaceV1(sim *simulator) *capability.Static {
	async := func(direction string) capability.Func {
		return func(ctx context.Context, args []any) (any, error) {
			return sim.actuate(ctx, intArg(args[0]), direction, true, 0)
		}
	}

	return capability.NewStatic().
		Add(method("UpAsync", true, idParam32), async(directionUp)).
		Add(method("DownAsync", true, idParam32), async(directionDown)).
		Add(method("RequestStatusAsync", true, idParam32), func(ctx context.Context, args []any) (any, error) {
			st, err := sim.status(ctx, intArg(args[0]))
			if err != nil {
				return nil, err
			}

			return map[string]any{"result": st}, nil
		}).
		Add(method("RequestOperation", false, idParam32, opEnumParam), requestOperation(sim))
}

// requestOperation starts a motion and returns the bare transaction code.
func requestOperation(sim *simulator) capability.Func {
	return func(ctx context.Context, args []any) (any, error) {
		direction := directionUp
		if args[1] == directionDown {
			direction = directionDown
		}

		return sim.actuate(ctx, intArg(args[0]), direction, false, 0)
	}
}

func method(name string, async bool, params ...capability.Param) capability.Method {
	if params == nil {
		params = []capability.Param{}
	}

	return capability.Method{Name: name, Params: params, Async: async}
}

func intArg(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// seconds converts a whole-second timeout argument.
func seconds(v any) time.Duration {
	return time.Duration(intArg(v)) * time.Second
}

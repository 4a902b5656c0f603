package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
)

const (
	// DefaultPollInterval is the pause between transaction and status polls.
	DefaultPollInterval = 300 * time.Millisecond

	// minStatusPoll and maxStatusPoll bound each status poll of the fallback chain.
	minStatusPoll = 3 * time.Second
	maxStatusPoll = 10 * time.Second
)

// Resolver turns probe receipts into states, resolving transaction codes
// through whichever accessor the controller offers.
type Resolver struct {
	// probe invokes the controller.
	probe *capability.Probe
	// interval is the pause between polls.
	interval time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Resolver) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// New creates a Resolver over probe.
func New(probe *capability.Probe, opts ...Option) *Resolver {
	r := &Resolver{
		probe:    probe,
		interval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Probe returns the underlying probe.
func (r *Resolver) Probe() *capability.Probe {
	return r.probe
}

// Run invokes op once and normalizes its result.
func (r *Resolver) Run(ctx context.Context, op stand.Operation, args capability.Args) (*stand.State, error) {
	receipt, err := r.probe.Call(ctx, op, args)
	if err != nil {
		return nil, err
	}

	return r.Normalize(ctx, op, receipt, args)
}

// Normalize converts a receipt into a state.
func (r *Resolver) Normalize(
	ctx context.Context,
	op stand.Operation,
	receipt capability.Receipt,
	args capability.Args,
) (*stand.State, error) {
	switch receipt.Kind {
	case capability.ReceiptState, capability.ReceiptWrapped:
		return receipt.State, nil
	case capability.ReceiptNull:
		return nil, &stand.NullResultError{Op: op}
	case capability.ReceiptTransaction:
		return r.resolveTransaction(ctx, op, receipt.Code, args)
	default:
		return nil, &stand.UnexpectedShapeError{Op: op, Descriptor: capability.Describe(receipt.Raw)}
	}
}

// Status reads and normalizes the stand state.
func (r *Resolver) Status(ctx context.Context, args capability.Args) (*stand.State, error) {
	return r.Run(ctx, stand.OpStatus, args)
}

// Battery reads the battery level. Controllers without a battery method are
// asked for their status instead; a bare battery value is accepted as is.
func (r *Resolver) Battery(ctx context.Context, args capability.Args) (stand.Battery, error) {
	receipt, err := r.probe.Call(ctx, stand.OpBattery, args)
	if errors.Is(err, stand.ErrNotSupported) {
		logger.DebugKV(ctx, "No battery method, falling back to status")

		state, statusErr := r.Status(ctx, args)
		if statusErr != nil {
			return stand.BatteryUnknown, statusErr
		}

		return state.Battery, nil
	}

	if err != nil {
		return stand.BatteryUnknown, err
	}

	if capability.IsBatteryValue(receipt.Raw) {
		return capability.BatteryOf(receipt.Raw), nil
	}

	if m, ok := receipt.Raw.(map[string]any); ok && receipt.Kind == capability.ReceiptUnknown {
		for _, key := range []string{"battery", "battery_level", "batteryLevel", "level"} {
			if v, found := m[key]; found {
				return capability.BatteryOf(v), nil
			}
		}
	}

	state, err := r.Normalize(ctx, stand.OpBattery, receipt, args)
	if err != nil {
		return stand.BatteryUnknown, err
	}

	return state.Battery, nil
}

// resolveTransaction tries, in order: the blocking wait accessor, polling
// the get accessor, and polling the status operation.
func (r *Resolver) resolveTransaction(
	ctx context.Context,
	op stand.Operation,
	code string,
	args capability.Args,
) (*stand.State, error) {
	ctx = logger.WithKV(ctx, "transaction", code)

	txArgs := args
	txArgs.Code = code

	if binding, err := r.probe.Bind(stand.OpWaitTransaction, txArgs); err == nil {
		logger.DebugKV(ctx, "Waiting for transaction", "alias", binding.Alias)

		return r.waitTransaction(ctx, op, code, binding, args.Timeout)
	}

	if binding, err := r.probe.Bind(stand.OpGetTransaction, txArgs); err == nil {
		logger.DebugKV(ctx, "Polling transaction", "alias", binding.Alias, "interval", r.interval.String())

		state, err := r.poll(ctx, args.Timeout, 0, binding)
		return unresolved(state, err, op, code)
	}

	statusArgs := args
	statusArgs.Timeout = statusPollBound(args.Timeout)

	binding, err := r.probe.Bind(stand.OpStatus, statusArgs)
	if err != nil {
		return nil, &stand.UnresolvableError{Op: op, Code: code}
	}

	logger.DebugKV(ctx, "No transaction accessor, polling status", "alias", binding.Alias, "poll_bound", statusArgs.Timeout.String())

	state, err := r.poll(ctx, args.Timeout, statusArgs.Timeout, binding)

	return unresolved(state, err, op, code)
}

func (r *Resolver) waitTransaction(
	ctx context.Context,
	op stand.Operation,
	code string,
	binding *capability.Binding,
	timeout time.Duration,
) (*stand.State, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	raw, err := binding.Invoke(callCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &stand.UnresolvableError{Op: op, Code: code}
		}

		return nil, err
	}

	receipt := capability.Classify(raw)
	if receipt.Kind == capability.ReceiptState || receipt.Kind == capability.ReceiptWrapped {
		return receipt.State, nil
	}

	return nil, &stand.UnresolvableError{Op: op, Code: code}
}

// poll invokes binding every interval until it yields a state or timeout
// elapses. attemptBound limits each call; zero bounds it by the deadline only.
// The wait is bounded by wall-clock time, not by a number of attempts.
func (r *Resolver) poll(
	ctx context.Context,
	timeout time.Duration,
	attemptBound time.Duration,
	binding *capability.Binding,
) (*stand.State, error) {
	deadline := time.Now().Add(timeout)

	for attempt := 1; ; attempt++ {
		state, err := r.attempt(ctx, deadline, attemptBound, binding)
		if state != nil {
			logger.DebugKV(ctx, "Transaction resolved", "attempts", attempt)
			return state, nil
		}

		if err != nil {
			var failure *stand.RemoteFailure
			if errors.As(err, &failure) && failure.VendorCode != "" {
				return nil, err
			}

			logger.DebugKV(ctx, "Poll attempt failed", "attempt", attempt, "error", err)
		}

		wait := min(r.interval, time.Until(deadline))
		if wait <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Resolver) attempt(
	ctx context.Context,
	deadline time.Time,
	bound time.Duration,
	binding *capability.Binding,
) (*stand.State, error) {
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if bound > 0 {
		var boundCancel context.CancelFunc

		callCtx, boundCancel = context.WithTimeout(callCtx, bound)
		defer boundCancel()
	}

	raw, err := binding.Invoke(callCtx)
	if err != nil {
		return nil, err
	}

	receipt := capability.Classify(raw)
	if receipt.Kind == capability.ReceiptState || receipt.Kind == capability.ReceiptWrapped {
		return receipt.State, nil
	}

	return nil, nil
}

// statusPollBound is max(3s, min(10s, timeout)).
func statusPollBound(timeout time.Duration) time.Duration {
	return max(minStatusPoll, min(maxStatusPoll, timeout))
}

func unresolved(state *stand.State, err error, op stand.Operation, code string) (*stand.State, error) {
	if err != nil {
		return nil, err
	}

	if state == nil {
		return nil, &stand.UnresolvableError{Op: op, Code: code}
	}

	return state, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

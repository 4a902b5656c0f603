package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/resolve"
	"github.com/oshokin/autostand/internal/watcher"
)

// Confirmer is the part of the confirmation watcher the orchestrator uses.
type Confirmer interface {
	Available() bool
	Register(since time.Time, filter string) *watcher.Wait
}

// Confirmation is what the event stream said about a command.
type Confirmation int

const (
	// ConfirmationNone means no confirmation was attempted.
	ConfirmationNone Confirmation = iota
	// ConfirmationOk means an Ok event arrived.
	ConfirmationOk
	// ConfirmationError means an Error event arrived.
	ConfirmationError
	// ConfirmationTimeout means no event arrived in time.
	ConfirmationTimeout
	// ConfirmationUnavailable means the watcher was not running.
	ConfirmationUnavailable
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmationOk:
		return "ok"
	case ConfirmationError:
		return "error"
	case ConfirmationTimeout:
		return "timeout"
	case ConfirmationUnavailable:
		return "unavailable"
	default:
		return "none"
	}
}

// Outcome is the result of one command.
type Outcome struct {
	Op     stand.Operation
	Policy Policy
	// State is the stand state the controller reported; nil when only the
	// event stream confirmed the command.
	State *stand.State
	// Ack is the raw transaction code of a confirmed no-wait send.
	Ack          string
	Confirmation Confirmation
	// Event is the matched event for ConfirmationOk and ConfirmationError.
	Event *watcher.Event
	// Suppressed is the send failure an Ok event overrode.
	Suppressed error
}

// Confirmed reports whether the event stream corroborated the command.
func (o *Outcome) Confirmed() bool {
	return o.Confirmation == ConfirmationOk
}

// Options configures an Orchestrator.
type Options struct {
	StandID int
	// Timeout bounds each controller operation.
	Timeout time.Duration
	Policy  Policy
	// ConfirmTimeout bounds the wait for a confirmation event.
	ConfirmTimeout time.Duration
	// URLFilter is the substring a confirmation event URL must contain.
	URLFilter string
}

// Orchestrator runs commands against one stand, one at a time.
type Orchestrator struct {
	resolver *resolve.Resolver
	// confirmer may be nil, which is the same as unavailable.
	confirmer Confirmer
	opts      Options

	// mu serializes commands.
	mu sync.Mutex
}

// New creates an Orchestrator.
func New(resolver *resolve.Resolver, confirmer Confirmer, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout
	}

	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = config.DefaultConfirmTimeout
	}

	return &Orchestrator{
		resolver:  resolver,
		confirmer: confirmer,
		opts:      opts,
	}
}

// Policy returns the dispatch policy for actuations.
func (o *Orchestrator) Policy() Policy {
	return o.opts.Policy
}

// Raise lifts the stand.
func (o *Orchestrator) Raise(ctx context.Context) (*Outcome, error) {
	return o.Actuate(ctx, stand.OpRaise)
}

// Lower lowers the stand.
func (o *Orchestrator) Lower(ctx context.Context) (*Outcome, error) {
	return o.Actuate(ctx, stand.OpLower)
}

// Actuate runs a raise or lower under the configured policy.
func (o *Orchestrator) Actuate(ctx context.Context, op stand.Operation) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = o.label(ctx, op)

	if o.opts.Policy == PolicyConfirmed {
		return o.confirmed(ctx, op)
	}

	return o.direct(ctx, op)
}

// Status reads the stand state directly.
func (o *Orchestrator) Status(ctx context.Context) (*stand.State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = o.label(ctx, stand.OpStatus)

	state, err := o.resolver.Status(ctx, o.args())
	if err != nil {
		logger.WarnKV(ctx, "Status failed", "error", err)
		return nil, err
	}

	return state, nil
}

// Battery reads the battery level directly.
func (o *Orchestrator) Battery(ctx context.Context) (stand.Battery, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = o.label(ctx, stand.OpBattery)

	level, err := o.resolver.Battery(ctx, o.args())
	if err != nil {
		logger.WarnKV(ctx, "Battery query failed", "error", err)
		return stand.BatteryUnknown, err
	}

	return level, nil
}

func (o *Orchestrator) direct(ctx context.Context, op stand.Operation) (*Outcome, error) {
	logger.DebugKV(ctx, "Dispatching directly")

	state, err := o.resolver.Run(ctx, op, o.args())
	if err != nil {
		logger.WarnKV(ctx, "Command failed", "error", err)
		return nil, err
	}

	logger.InfoKV(ctx, "Command completed", "stand_state", state.StandState)

	return &Outcome{Op: op, Policy: PolicyDirect, State: state}, nil
}

// confirmed sends the command with a watcher wait registered just before the
// send and decides the outcome from both results.
func (o *Orchestrator) confirmed(ctx context.Context, op stand.Operation) (*Outcome, error) {
	if o.confirmer == nil || !o.confirmer.Available() {
		logger.InfoKV(ctx, "No confirmation available, dispatching directly", "reason", stand.ErrWatcherUnavailable)

		outcome, err := o.direct(ctx, op)
		if outcome != nil {
			outcome.Policy = PolicyConfirmed
			outcome.Confirmation = ConfirmationUnavailable
		}

		return outcome, err
	}

	since := time.Now()
	wait := o.confirmer.Register(since, o.opts.URLFilter)

	outcome, sendErr := o.send(ctx, op)
	if stand.IsLocal(sendErr) {
		wait.Cancel()
		return nil, sendErr
	}

	logger.DebugKV(ctx, "Awaiting confirmation",
		"timeout", o.opts.ConfirmTimeout.String(),
		"filter", o.opts.URLFilter,
		"send_failed", sendErr != nil)

	event, matched := wait.Await(ctx, o.opts.ConfirmTimeout)

	switch {
	case matched && event.IsOk():
		outcome.Confirmation = ConfirmationOk
		outcome.Event = &event
		outcome.Suppressed = sendErr

		if sendErr != nil {
			logger.InfoKV(ctx, "Send failed but confirmation arrived, suppressing", "error", sendErr)
		} else {
			logger.InfoKV(ctx, "Command confirmed", "event", event.Line)
		}

		return outcome, nil
	case matched:
		outcome.Confirmation = ConfirmationError
		outcome.Event = &event

		logger.WarnKV(ctx, "Confirmation reported an error", "event", event.Line)
	default:
		outcome.Confirmation = ConfirmationTimeout

		logger.WarnKV(ctx, "No confirmation before timeout", "timeout", o.opts.ConfirmTimeout.String())
	}

	if sendErr != nil {
		return nil, sendErr
	}

	return o.settle(ctx, outcome), nil
}

// send invokes the no-wait form of op, or op itself when the controller has
// no no-wait form. The outcome is never nil.
func (o *Orchestrator) send(ctx context.Context, op stand.Operation) (*Outcome, error) {
	outcome := &Outcome{Op: op, Policy: PolicyConfirmed}
	args := o.args()

	sendOp := op
	if noWait, ok := op.NoWait(); ok && o.resolver.Probe().Supports(noWait, args) {
		sendOp = noWait
	}

	logger.DebugKV(ctx, "Sending command", "send_operation", sendOp)

	receipt, err := o.resolver.Probe().Call(ctx, sendOp, args)
	if err != nil {
		return outcome, err
	}

	if receipt.Kind == capability.ReceiptTransaction {
		outcome.Ack = receipt.Code

		return outcome, nil
	}

	outcome.State, err = o.resolver.Normalize(ctx, sendOp, receipt, args)

	return outcome, err
}

// settle tries to resolve a pending acknowledgement into a state once the
// event stream gave no positive answer. The send already succeeded, so a
// failed resolution is logged and the outcome keeps the raw acknowledgement.
func (o *Orchestrator) settle(ctx context.Context, outcome *Outcome) *Outcome {
	if outcome.State != nil || outcome.Ack == "" {
		return outcome
	}

	op, _ := outcome.Op.NoWait()

	state, err := o.resolver.Normalize(ctx, op, capability.Receipt{
		Kind: capability.ReceiptTransaction,
		Code: outcome.Ack,
		Raw:  outcome.Ack,
	}, o.args())
	if err != nil {
		logger.WarnKV(ctx, "Acknowledged command left unresolved", "ack", outcome.Ack, "error", err)
		return outcome
	}

	outcome.State = state

	return outcome
}

func (o *Orchestrator) args() capability.Args {
	return capability.Args{StandID: o.opts.StandID, Timeout: o.opts.Timeout}
}

// label threads the per-command labels through ctx.
func (o *Orchestrator) label(ctx context.Context, op stand.Operation) context.Context {
	ctx = capability.WithOperation(ctx, op)

	return logger.WithKV(ctx,
		"operation", op.String(),
		"stand_id", o.opts.StandID,
		"request_id", uuid.NewString(),
	)
}

package capability

import (
	"context"
	"sort"

	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
)

// Probe selects and invokes the method alias that fits a logical operation.
// Selection is by inspection only; a selected binding is invoked exactly once
// and no other alias is tried afterwards, so an actuation is never repeated.
type Probe struct {
	// handle is the controller being probed.
	handle Handle
	// signatures lists the (alias, template) candidates per operation.
	signatures map[stand.Operation][]Signature
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithSignatures replaces the candidate table for the given operations.
func WithSignatures(table map[stand.Operation][]Signature) ProbeOption {
	return func(p *Probe) {
		for op, sigs := range table {
			p.signatures[op] = sigs
		}
	}
}

// NewProbe creates a Probe over handle using DefaultSignatures.
func NewProbe(handle Handle, opts ...ProbeOption) *Probe {
	p := &Probe{
		handle:     handle,
		signatures: DefaultSignatures(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Binding is a selected method with its coerced arguments, not yet invoked.
type Binding struct {
	Op     stand.Operation
	Alias  string
	Method Method
	Args   []any

	standID int
	handle  Handle
}

// Bind finds the first (alias, template) pair the controller can accept.
// Within one alias blocking overloads are preferred over async ones.
func (p *Probe) Bind(op stand.Operation, args Args) (*Binding, error) {
	methods := p.handle.Methods()

	for _, sig := range p.signatures[op] {
		candidates := overloads(methods, sig.Alias)
		if len(candidates) == 0 {
			continue
		}

		built := sig.Template.Build(args)

		for _, m := range candidates {
			coerced, ok := CoerceAll(m, built)
			if !ok {
				continue
			}

			return &Binding{
				Op:      op,
				Alias:   sig.Alias,
				Method:  m,
				Args:    coerced,
				standID: args.StandID,
				handle:  p.handle,
			}, nil
		}
	}

	return nil, &stand.NotSupportedError{Op: op}
}

// Supports reports whether op has a binding for args.
func (p *Probe) Supports(op stand.Operation, args Args) bool {
	_, err := p.Bind(op, args)

	return err == nil
}

// Invoke performs the call and waits for any Future to complete.
// Failures of the call itself are returned as *stand.RemoteFailure.
func (b *Binding) Invoke(ctx context.Context) (any, error) {
	ctx = WithOperation(ctx, b.Op)

	logger.DebugKV(ctx, "Invoking controller method", "alias", b.Alias, "method", b.Method.String())

	result, err := b.handle.Invoke(ctx, b.Method, b.Args)
	if err != nil {
		return nil, stand.AsRemoteFailure(err, b.Op, b.standID)
	}

	if f, ok := result.(Future); ok {
		result, err = f.Await(ctx)
		if err != nil {
			return nil, stand.AsRemoteFailure(err, b.Op, b.standID)
		}
	}

	return result, nil
}

// Call binds op, invokes the binding once and classifies the result.
func (p *Probe) Call(ctx context.Context, op stand.Operation, args Args) (Receipt, error) {
	binding, err := p.Bind(op, args)
	if err != nil {
		return Receipt{}, err
	}

	raw, err := binding.Invoke(ctx)
	if err != nil {
		return Receipt{}, err
	}

	return Classify(raw), nil
}

// overloads returns the methods named alias, blocking forms first.
func overloads(methods []Method, alias string) []Method {
	var out []Method

	for _, m := range methods {
		if m.Name == alias {
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Async && out[j].Async
	})

	return out
}

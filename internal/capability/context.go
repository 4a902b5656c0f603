package capability

import (
	"context"

	"github.com/oshokin/autostand/internal/domain/stand"
)

// operationKey is the private context key for the operation label.
type operationKey struct{}

// WithOperation labels ctx with the logical operation being executed.
// Transport layers read the label to tag response log entries.
func WithOperation(ctx context.Context, op stand.Operation) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext returns the operation label, or "" when there is none.
func OperationFromContext(ctx context.Context) stand.Operation {
	op, _ := ctx.Value(operationKey{}).(stand.Operation)

	return op
}

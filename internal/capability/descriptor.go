package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the declared type of a method parameter.
type Kind string

const (
	// KindInt32 is a 32-bit integer.
	KindInt32 Kind = "int32"
	// KindInt64 is a 64-bit integer.
	KindInt64 Kind = "int64"
	// KindFloat32 is a single precision float.
	KindFloat32 Kind = "float32"
	// KindFloat64 is a double precision float.
	KindFloat64 Kind = "float64"
	// KindBool is a boolean.
	KindBool Kind = "bool"
	// KindString is a string.
	KindString Kind = "string"
	// KindEnum is a string restricted to Param.Enum, matched case-insensitively.
	KindEnum Kind = "enum"
	// KindObject is any reference value, including nil.
	KindObject Kind = "object"
)

// Param describes one positional parameter.
type Param struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Enum     []string `json:"enum,omitempty"`
	Nullable bool     `json:"nullable,omitempty"`
}

// Method describes one invokable method of a controller.
// Several methods may share a name when the controller overloads it.
type Method struct {
	Name   string  `json:"name"`
	Params []Param `json:"params"`
	// Async marks methods that return a Future instead of a value.
	Async bool `json:"async,omitempty"`
}

// String renders the method as Name(kind, kind).
func (m Method) String() string {
	kinds := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		kinds = append(kinds, string(p.Kind))
	}

	suffix := ""
	if m.Async {
		suffix = " async"
	}

	return fmt.Sprintf("%s(%s)%s", m.Name, strings.Join(kinds, ", "), suffix)
}

// Handle is a controller whose method surface is only known at runtime.
type Handle interface {
	// Methods lists the methods the controller exposes.
	Methods() []Method
	// Invoke calls m with positional args. Async methods return a Future.
	Invoke(ctx context.Context, m Method, args []any) (any, error)
}

// Future is the pending result of an asynchronous method.
type Future interface {
	Await(ctx context.Context) (any, error)
}

// future is a Future backed by a goroutine.
type future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn in a new goroutine and returns its Future.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) Future {
	f := &future{
		done: make(chan struct{}),
	}

	go func() {
		defer close(f.done)

		f.value, f.err = fn(ctx)
	}()

	return f
}

// Resolved returns a Future that is already complete.
func Resolved(value any, err error) Future {
	f := &future{
		done:  make(chan struct{}),
		value: value,
		err:   err,
	}
	close(f.done)

	return f
}

// Await blocks until the result is ready or ctx ends.
func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errUnknownMethod = errors.New("unknown method")

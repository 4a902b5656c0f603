package capability

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Func implements one method of a Static handle.
type Func func(ctx context.Context, args []any) (any, error)

// Static is a Handle with a fixed method table, used for controllers whose
// surface is known in-process: simulator profiles and tests.
// Async methods run their Func in a goroutine and return a Future.
type Static struct {
	methods []Method
	funcs   []Func

	mu    sync.Mutex
	calls map[string]int
}

// NewStatic creates an empty Static handle.
func NewStatic() *Static {
	return &Static{
		calls: make(map[string]int),
	}
}

// Add registers m with its implementation and returns s for chaining.
func (s *Static) Add(m Method, fn Func) *Static {
	s.methods = append(s.methods, m)
	s.funcs = append(s.funcs, fn)

	return s
}

// Methods implements Handle.
func (s *Static) Methods() []Method {
	return slices.Clone(s.methods)
}

// Invoke implements Handle.
func (s *Static) Invoke(ctx context.Context, m Method, args []any) (any, error) {
	for i, candidate := range s.methods {
		if !sameMethod(candidate, m) {
			continue
		}

		s.mu.Lock()
		s.calls[m.Name]++
		s.mu.Unlock()

		fn := s.funcs[i]

		if m.Async {
			return Go(ctx, func(ctx context.Context) (any, error) {
				return fn(ctx, args)
			}), nil
		}

		return fn(ctx, args)
	}

	return nil, fmt.Errorf("%w: %s", errUnknownMethod, m)
}

// Calls returns how many times methods named name were invoked.
func (s *Static) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[name]
}

func sameMethod(a, b Method) bool {
	if a.Name != b.Name || a.Async != b.Async || len(a.Params) != len(b.Params) {
		return false
	}

	for i := range a.Params {
		if a.Params[i].Kind != b.Params[i].Kind {
			return false
		}
	}

	return true
}

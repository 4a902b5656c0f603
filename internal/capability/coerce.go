package capability

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// numericRank orders numeric kinds for widening: a value converts to any kind of equal or higher rank.
var numericRank = map[Kind]int{ //nolint:gochecknoglobals // Read-only lookup table.
	KindInt32:   1,
	KindInt64:   2,
	KindFloat32: 3,
	KindFloat64: 4,
}

// kindOf returns the numeric kind of a Go value.
func kindOf(v any) (Kind, bool) {
	switch v.(type) {
	case int32, int16, int8, uint8, uint16:
		return KindInt32, true
	case int, int64, uint32:
		return KindInt64, true
	case float32:
		return KindFloat32, true
	case float64:
		return KindFloat64, true
	default:
		return "", false
	}
}

// Coerce converts arg to the type p declares, following the matching rules:
// numeric widening, case-insensitive enum parsing and nil for nullable or
// reference parameters. It reports false when arg is not coercible.
func Coerce(arg any, p Param) (any, bool) {
	if arg == nil {
		return nil, p.Nullable || p.Kind == KindObject
	}

	switch p.Kind {
	case KindInt32, KindInt64, KindFloat32, KindFloat64:
		return widen(arg, p.Kind)
	case KindBool:
		v, ok := arg.(bool)
		return v, ok
	case KindString:
		v, ok := arg.(string)
		return v, ok
	case KindEnum:
		s, ok := arg.(string)
		if !ok {
			return nil, false
		}

		for _, value := range p.Enum {
			if strings.EqualFold(value, s) {
				return value, true
			}
		}

		return nil, false
	case KindObject:
		return arg, true
	default:
		return nil, false
	}
}

// widen converts a numeric value to a kind of equal or higher rank.
func widen(arg any, target Kind) (any, bool) {
	from, ok := kindOf(arg)
	if !ok || numericRank[from] > numericRank[target] {
		return nil, false
	}

	f, _ := toFloat(arg)

	switch target {
	case KindInt32:
		return int32(f), true
	case KindInt64:
		return toInt64(arg), true
	case KindFloat32:
		return float32(f), true
	default:
		return f, true
	}
}

// CoerceAll checks a whole template against a method. The arity must match exactly.
func CoerceAll(m Method, args []any) ([]any, bool) {
	if len(args) != len(m.Params) {
		return nil, false
	}

	out := make([]any, len(args))

	for i, arg := range args {
		v, ok := Coerce(arg, m.Params[i])
		if !ok {
			return nil, false
		}

		out[i] = v
	}

	return out, true
}

var errArgument = errors.New("invalid argument")

// Decode converts wire values (JSON-style numbers, strings, bools) into the
// Go types m declares. Unlike Coerce it narrows integral floats, because
// every wire number arrives as float64.
func Decode(m Method, raw []any) ([]any, error) {
	if len(raw) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", errArgument, m.Name, len(m.Params), len(raw))
	}

	out := make([]any, len(raw))

	for i, value := range raw {
		p := m.Params[i]

		if f, ok := value.(float64); ok {
			switch p.Kind {
			case KindInt32, KindInt64:
				if f != math.Trunc(f) {
					return nil, fmt.Errorf("%w: %s expects an integer", errArgument, p.Name)
				}

				if p.Kind == KindInt32 {
					if f < math.MinInt32 || f > math.MaxInt32 {
						return nil, fmt.Errorf("%w: %s out of int32 range", errArgument, p.Name)
					}

					value = int32(f)
				} else {
					// 2^63 is exact as a float64, MaxInt64 is not.
					if f < math.MinInt64 || f >= -math.MinInt64 {
						return nil, fmt.Errorf("%w: %s out of int64 range", errArgument, p.Name)
					}

					value = int64(f)
				}
			case KindFloat32:
				value = float32(f)
			default:
			}
		}

		v, ok := Coerce(value, p)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects %s, got %T", errArgument, p.Name, p.Kind, value)
		}

		out[i] = v
	}

	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	default:
		f, _ := toFloat(v)
		return int64(f)
	}
}

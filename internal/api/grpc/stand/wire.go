package stand

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/autostand/internal/capability"
	domain "github.com/oshokin/autostand/internal/domain/stand"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "autostand.v1.Stand"
	// DescribeMethod lists the controller's methods.
	DescribeMethod = "Describe"

	methodsField = "methods"
)

// FullMethod returns the gRPC method path for a controller method name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// EncodeMethods renders a method surface as the Describe response.
func EncodeMethods(methods []capability.Method) (*structpb.Struct, error) {
	list := make([]any, 0, len(methods))

	for _, m := range methods {
		params := make([]any, 0, len(m.Params))

		for _, p := range m.Params {
			enum := make([]any, 0, len(p.Enum))
			for _, e := range p.Enum {
				enum = append(enum, e)
			}

			params = append(params, map[string]any{
				"name":     p.Name,
				"kind":     string(p.Kind),
				"enum":     enum,
				"nullable": p.Nullable,
			})
		}

		list = append(list, map[string]any{
			"name":   m.Name,
			"async":  m.Async,
			"params": params,
		})
	}

	out, err := structpb.NewStruct(map[string]any{methodsField: list})
	if err != nil {
		return nil, fmt.Errorf("encode methods: %w", err)
	}

	return out, nil
}

// DecodeMethods reads a Describe response.
func DecodeMethods(s *structpb.Struct) ([]capability.Method, error) {
	raw, err := json.Marshal(s.AsMap()[methodsField])
	if err != nil {
		return nil, fmt.Errorf("decode methods: %w", err)
	}

	var methods []capability.Method
	if err = json.Unmarshal(raw, &methods); err != nil {
		return nil, fmt.Errorf("decode methods: %w", err)
	}

	return methods, nil
}

// EncodeArgs packs positional arguments.
func EncodeArgs(args []any) (*structpb.ListValue, error) {
	list, err := structpb.NewList(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}

	return list, nil
}

// EncodeResult converts a controller result into a wire value. States are
// sent as objects with snake_case fields.
func EncodeResult(v any) (*structpb.Value, error) {
	out, err := structpb.NewValue(toWire(v))
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return out, nil
}

// StateFields renders s as a wire object. Unknown values are null.
func StateFields(s *domain.State) map[string]any {
	fields := map[string]any{
		"id":                  s.ID,
		"operate":             s.Operate,
		"arm_state":           s.ArmState,
		"stand_state":         s.StandState,
		"battery":             nil,
		"ultrasonic_detected": nil,
	}

	if s.Battery.Known() {
		fields["battery"] = int(s.Battery)
	}

	switch s.UltrasonicDetected {
	case domain.Yes:
		fields["ultrasonic_detected"] = true
	case domain.No:
		fields["ultrasonic_detected"] = false
	case domain.Unknown:
	}

	return fields
}

func toWire(v any) any {
	switch val := v.(type) {
	case *domain.State:
		if val == nil {
			return nil
		}

		return StateFields(val)
	case domain.State:
		return StateFields(&val)
	case capability.StateCarrier:
		return map[string]any{"state": toWire(val.EmbeddedState())}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toWire(item)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toWire(item)
		}

		return out
	default:
		return v
	}
}

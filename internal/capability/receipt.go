package capability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/oshokin/autostand/internal/domain/stand"
)

// ReceiptKind tags the shape of a raw operation result.
type ReceiptKind int

const (
	// ReceiptUnknown is a shape the normalizer does not recognize.
	ReceiptUnknown ReceiptKind = iota
	// ReceiptNull is a nil result.
	ReceiptNull
	// ReceiptState is a state returned directly.
	ReceiptState
	// ReceiptWrapped is a state embedded in a wrapper object.
	ReceiptWrapped
	// ReceiptTransaction is an opaque transaction code to resolve later.
	ReceiptTransaction
)

func (k ReceiptKind) String() string {
	switch k {
	case ReceiptNull:
		return "null"
	case ReceiptState:
		return "state"
	case ReceiptWrapped:
		return "wrapped state"
	case ReceiptTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Receipt is the classified result of one probed call.
type Receipt struct {
	Kind ReceiptKind
	// State is set for ReceiptState and ReceiptWrapped.
	State *stand.State
	// Code is set for ReceiptTransaction.
	Code string
	// Raw is the value as the controller returned it.
	Raw any
}

// StateCarrier is implemented by in-process result types that embed a state.
type StateCarrier interface {
	EmbeddedState() *stand.State
}

// wrapperKeys are the fields a wrapper object may embed its state under.
var wrapperKeys = []string{"state", "stand", "result", "data"} //nolint:gochecknoglobals // Read-only lookup table.

// transactionKeys are the fields a transaction object carries its code under.
var transactionKeys = []string{"transaction_id", "transactionId", "transaction"} //nolint:gochecknoglobals // Read-only lookup table.

// Classify decides which shape raw has.
func Classify(raw any) Receipt {
	switch v := raw.(type) {
	case nil:
		return Receipt{Kind: ReceiptNull}
	case *stand.State:
		if v == nil {
			return Receipt{Kind: ReceiptNull}
		}

		return Receipt{Kind: ReceiptState, State: v, Raw: raw}
	case stand.State:
		return Receipt{Kind: ReceiptState, State: &v, Raw: raw}
	case StateCarrier:
		if s := v.EmbeddedState(); s != nil {
			return Receipt{Kind: ReceiptWrapped, State: s, Raw: raw}
		}
	case string:
		if code := strings.TrimSpace(v); code != "" {
			return Receipt{Kind: ReceiptTransaction, Code: code, Raw: raw}
		}
	case map[string]any:
		if s, ok := DecodeState(v); ok {
			return Receipt{Kind: ReceiptState, State: s, Raw: raw}
		}

		for _, key := range wrapperKeys {
			if inner, ok := v[key]; ok {
				if r := Classify(inner); r.Kind == ReceiptState || r.Kind == ReceiptWrapped {
					return Receipt{Kind: ReceiptWrapped, State: r.State, Raw: raw}
				}
			}
		}

		for _, key := range transactionKeys {
			if code, ok := v[key].(string); ok && strings.TrimSpace(code) != "" {
				return Receipt{Kind: ReceiptTransaction, Code: strings.TrimSpace(code), Raw: raw}
			}
		}
	}

	return Receipt{Kind: ReceiptUnknown, Raw: raw}
}

// Describe returns a short shape descriptor used in UnexpectedShape errors.
func Describe(raw any) string {
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Sprintf("%T", raw)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return "object{" + strings.Join(keys, ",") + "}"
}

// stateKeys maps each state field to the spellings controllers use for it.
var stateKeys = map[string][]string{ //nolint:gochecknoglobals // Read-only lookup table.
	"id":         {"id", "stand_id", "standId"},
	"operate":    {"operate", "operating"},
	"arm":        {"arm_state", "armState"},
	"stand":      {"stand_state", "standState"},
	"battery":    {"battery", "battery_level", "batteryLevel"},
	"ultrasonic": {"ultrasonic_detected", "ultrasonicDetected", "ultrasonic"},
}

func lookup(m map[string]any, field string) (any, bool) {
	for _, key := range stateKeys[field] {
		if v, ok := m[key]; ok {
			return v, true
		}
	}

	return nil, false
}

// DecodeState reads a state from a decoded object. The object counts as a
// state when it has a positive id and at least one other state field.
func DecodeState(m map[string]any) (*stand.State, bool) {
	rawID, ok := lookup(m, "id")
	if !ok {
		return nil, false
	}

	idValue, ok := number(rawID)
	if !ok || idValue < 1 {
		return nil, false
	}

	s := &stand.State{
		ID:                 int(idValue),
		Battery:            stand.BatteryUnknown,
		UltrasonicDetected: stand.Unknown,
	}

	fields := 0

	if v, ok := lookup(m, "operate"); ok {
		fields++
		s.Operate = truthy(v) == stand.Yes
	}

	if v, ok := lookup(m, "arm"); ok {
		fields++
		s.ArmState = text(v)
	}

	if v, ok := lookup(m, "stand"); ok {
		if str, isString := v.(string); isString {
			fields++
			s.StandState = str
		}
	}

	if v, ok := lookup(m, "battery"); ok {
		fields++
		s.Battery = BatteryOf(v)
	}

	if v, ok := lookup(m, "ultrasonic"); ok {
		fields++
		s.UltrasonicDetected = truthy(v)
	}

	if fields == 0 {
		return nil, false
	}

	return s, true
}

// BatteryOf reads a bare battery value: a number, a numeric string with an
// optional percent sign, or nil for unknown.
func BatteryOf(v any) stand.Battery {
	if v == nil {
		return stand.BatteryUnknown
	}

	if s, ok := v.(string); ok {
		v = strings.TrimSuffix(strings.TrimSpace(s), "%")
	}

	n, ok := number(v)
	if !ok {
		return stand.BatteryUnknown
	}

	return stand.ParseBattery(n)
}

// IsBatteryValue reports whether v looks like a bare battery reading:
// a number, or a string with a percent sign.
func IsBatteryValue(v any) bool {
	if _, ok := toFloat(v); ok {
		return true
	}

	s, ok := v.(string)
	if !ok || !strings.HasSuffix(strings.TrimSpace(s), "%") {
		return false
	}

	_, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)

	return err == nil
}

func number(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}

	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}

	return 0, false
}

func truthy(v any) stand.Tristate {
	switch b := v.(type) {
	case bool:
		return stand.TristateOf(b)
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1", "on", "detected":
			return stand.Yes
		case "false", "no", "n", "0", "off", "clear":
			return stand.No
		}
	default:
		if f, ok := toFloat(v); ok {
			return stand.TristateOf(f != 0)
		}
	}

	return stand.Unknown
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

package capability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/autostand/internal/domain/stand"
)

// carrier is an in-process result type embedding a state.
type carrier struct{ state *stand.State }

func (c carrier) EmbeddedState() *stand.State { return c.state }

// TestClassify covers every receipt shape.
func TestClassify(t *testing.T) {
	t.Parallel()

	direct := &stand.State{ID: 1}

	require.Equal(t, ReceiptNull, Classify(nil).Kind)
	require.Equal(t, ReceiptNull, Classify((*stand.State)(nil)).Kind)
	require.Equal(t, ReceiptState, Classify(direct).Kind)
	require.Equal(t, ReceiptState, Classify(stand.State{ID: 1}).Kind)
	require.Equal(t, ReceiptWrapped, Classify(carrier{state: direct}).Kind)
	require.Equal(t, ReceiptUnknown, Classify(carrier{}).Kind)

	tx := Classify("  tx-42 ")
	require.Equal(t, ReceiptTransaction, tx.Kind)
	require.Equal(t, "tx-42", tx.Code)

	txObject := Classify(map[string]any{"transaction_id": "tx-7", "status": "pending"})
	require.Equal(t, ReceiptTransaction, txObject.Kind)
	require.Equal(t, "tx-7", txObject.Code)

	done := Classify(map[string]any{
		"transaction_id": "tx-7",
		"status":         "done",
		"state":          map[string]any{"id": 2.0, "battery": 40.0},
	})
	require.Equal(t, ReceiptWrapped, done.Kind)
	require.Equal(t, stand.Battery(40), done.State.Battery)

	require.Equal(t, ReceiptUnknown, Classify(42).Kind)
	require.Equal(t, ReceiptUnknown, Classify(map[string]any{"id": 3.0}).Kind)
	require.Equal(t, ReceiptUnknown, Classify("").Kind)
}

// TestDecodeState reads every field spelling and defaults unknown values.
func TestDecodeState(t *testing.T) {
	t.Parallel()

	got, ok := DecodeState(map[string]any{
		"standId":            "5",
		"operate":            "true",
		"armState":           "FOLDED",
		"standState":         "DOWN",
		"batteryLevel":       "90%",
		"ultrasonicDetected": false,
	})
	require.True(t, ok)

	want := &stand.State{
		ID:                 5,
		Operate:            true,
		ArmState:           "FOLDED",
		StandState:         "DOWN",
		Battery:            90,
		UltrasonicDetected: stand.No,
	}
	require.Empty(t, cmp.Diff(want, got))

	got, ok = DecodeState(map[string]any{"id": 1.0, "stand_state": "UP", "ultrasonic_detected": nil, "battery": nil})
	require.True(t, ok)
	require.Equal(t, stand.BatteryUnknown, got.Battery)
	require.Equal(t, stand.Unknown, got.UltrasonicDetected)

	_, ok = DecodeState(map[string]any{"id": 0.0, "stand_state": "UP"})
	require.False(t, ok)
}

// TestBatteryOf accepts bare numbers and percent strings.
func TestBatteryOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, stand.Battery(70), BatteryOf(70))
	require.Equal(t, stand.Battery(70), BatteryOf(70.0))
	require.Equal(t, stand.Battery(30), BatteryOf("30%"))
	require.Equal(t, stand.BatteryUnknown, BatteryOf(nil))
	require.Equal(t, stand.BatteryUnknown, BatteryOf("full"))

	require.True(t, IsBatteryValue(int32(10)))
	require.True(t, IsBatteryValue("80 %"))
	require.False(t, IsBatteryValue("tx-1"))
	require.False(t, IsBatteryValue("12345"))
}

// TestDescribe names the shape of unexpected results.
func TestDescribe(t *testing.T) {
	t.Parallel()

	require.Equal(t, "int", Describe(1))
	require.Equal(t, "object{a,b}", Describe(map[string]any{"b": 1, "a": 2}))
}

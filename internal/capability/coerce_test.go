package capability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/autostand/internal/domain/stand"
)

// TestCoerce covers widening, enum parsing and nullability.
func TestCoerce(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		arg   any
		param Param
		want  any
		ok    bool
	}{
		{"int32 to int32", int32(3), Param{Kind: KindInt32}, int32(3), true},
		{"int32 widens to int64", int32(3), Param{Kind: KindInt64}, int64(3), true},
		{"int32 widens to float64", int32(3), Param{Kind: KindFloat64}, float64(3), true},
		{"int64 does not narrow to int32", int64(3), Param{Kind: KindInt32}, nil, false},
		{"float64 does not narrow to int64", 3.0, Param{Kind: KindInt64}, nil, false},
		{"bool to bool", true, Param{Kind: KindBool}, true, true},
		{"bool is not numeric", true, Param{Kind: KindInt32}, nil, false},
		{"string to string", "x", Param{Kind: KindString}, "x", true},
		{"enum case-insensitive", "up", Param{Kind: KindEnum, Enum: []string{"Up", "Down"}}, "Up", true},
		{"enum unknown value", "left", Param{Kind: KindEnum, Enum: []string{"Up", "Down"}}, nil, false},
		{"nil to nullable", nil, Param{Kind: KindInt32, Nullable: true}, nil, true},
		{"nil to object", nil, Param{Kind: KindObject}, nil, true},
		{"nil to value", nil, Param{Kind: KindInt32}, nil, false},
	}

	for _, tc := range cases {
		got, ok := Coerce(tc.arg, tc.param)
		require.Equal(t, tc.ok, ok, tc.name)

		if tc.ok {
			require.Equal(t, tc.want, got, tc.name)
		}
	}
}

// TestCoerceAll requires exact arity.
func TestCoerceAll(t *testing.T) {
	t.Parallel()

	m := method("Open", false, KindInt32, KindBool, KindInt32)

	_, ok := CoerceAll(m, []any{int32(1), true})
	require.False(t, ok)

	args, ok := CoerceAll(m, []any{int32(1), true, int32(30)})
	require.True(t, ok)
	require.Equal(t, []any{int32(1), true, int32(30)}, args)
}

// TestDecode narrows wire numbers into declared integer kinds.
func TestDecode(t *testing.T) {
	t.Parallel()

	m := Method{Name: "RequestOperation", Params: []Param{
		{Name: "id", Kind: KindInt32},
		{Name: "direction", Kind: KindEnum, Enum: []string{"Up", "Down"}},
	}}

	args, err := Decode(m, []any{2.0, "DOWN"})
	require.NoError(t, err)
	require.Equal(t, []any{int32(2), "Down"}, args)

	_, err = Decode(m, []any{2.5, "Up"})
	require.Error(t, err)

	_, err = Decode(m, []any{2.0})
	require.Error(t, err)
}

// TestDecode_RejectsOutOfRange refuses wire integers the declared kind cannot hold.
func TestDecode_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	narrow := Method{Name: "CheckStatus", Params: []Param{{Name: "id", Kind: KindInt32}}}
	wide := Method{Name: "GetStatus", Params: []Param{{Name: "id", Kind: KindInt64}}}

	_, err := Decode(narrow, []any{float64(math.MaxInt32) + 1})
	require.ErrorIs(t, err, errArgument)

	_, err = Decode(narrow, []any{float64(math.MinInt32) - 1})
	require.ErrorIs(t, err, errArgument)

	args, err := Decode(narrow, []any{float64(math.MaxInt32)})
	require.NoError(t, err)
	require.Equal(t, []any{int32(math.MaxInt32)}, args)

	_, err = Decode(wide, []any{1e19})
	require.ErrorIs(t, err, errArgument)

	args, err = Decode(wide, []any{float64(math.MaxInt32) + 1})
	require.NoError(t, err)
	require.Equal(t, []any{int64(math.MaxInt32) + 1}, args)
}

// TestTemplateBuild fills placeholders from Args.
func TestTemplateBuild(t *testing.T) {
	t.Parallel()

	sigs := DefaultSignatures()[stand.OpWaitTransaction]
	require.Equal(t, "WaitForTransaction", sigs[0].Alias)

	args := sigs[0].Template.Build(Args{Code: "tx-9", Timeout: 2100 * 1e6})
	require.Equal(t, []any{"tx-9", int32(3)}, args)
}

package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     any
		expected int
	}{
		{"nil equal", nil, nil, 0},
		{"nil before bool", nil, false, -1},
		{"bool before number", true, int64(0), -1},
		{"false before true", false, true, -1},
		{"ints", int64(1), int64(2), -1},
		{"int vs float", int64(1), 1.5, -1},
		{"float equals int", 2.0, int64(2), 0},
		{"mixed go ints", 3, uint8(3), 0},
		{"number before string", int64(9), "1", -1},
		{"strings", "b", "a", 1},
		{"string before bytes", "z", []byte("a"), -1},
		{"bytes", []byte("a"), []byte("b"), -1},
		{"canonicaler", wrapped{inner: int64(5)}, int64(4), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompareIncomparable(t *testing.T) {
	_, err := Compare(map[string]any{"a": 1}, int64(1))
	assert.ErrorIs(t, err, ErrIncomparable)

	_, err = Compare([]any{1}, []any{2})
	assert.ErrorIs(t, err, ErrIncomparable)
}

func TestCompare_IntFloatExact(t *testing.T) {
	const big = int64(1) << 53

	tests := []struct {
		name     string
		i        int64
		f        float64
		expected int
	}{
		{"above 2^53", big + 1, float64(big), 1},
		{"equal at 2^53", big, float64(big), 0},
		{"below 2^53", big - 1, float64(big), -1},
		{"max int below 2^63", math.MaxInt64, math.Exp2(63), -1},
		{"min int equals -2^63", math.MinInt64, -math.Exp2(63), 0},
		{"min int above float", math.MinInt64, -math.Exp2(64), 1},
		{"fraction above", 2, 2.5, -1},
		{"fraction below", -2, -2.5, 1},
		{"infinity", 0, math.Inf(1), -1},
		{"negative infinity", 0, math.Inf(-1), 1},
		{"nan", 0, math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.i, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			got, err = Compare(tt.f, tt.i)
			require.NoError(t, err)
			assert.Equal(t, -tt.expected, got)
		})
	}
}

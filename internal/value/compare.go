package value

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strings"
)

// rank orders storage classes: nil < bool < number < string < bytes.
func rank(v any) (int, bool) {
	switch v.(type) {
	case nil:
		return 0, true
	case bool:
		return 1, true
	case int64, float64:
		return 2, true
	case string:
		return 3, true
	case []byte:
		return 4, true
	default:
		return 0, false
	}
}

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
//
// Values of different storage classes order by class. Numbers compare
// numerically across int64 and float64; strings and byte slices compare
// bytewise. Canonicaler values compare through their canonical value.
// Any other kind fails with ErrIncomparable.
func Compare(a, b any) (int, error) {
	a, b = unwrapCanonical(Normalize(a)), unwrapCanonical(Normalize(b))
	ra, okA := rank(a)
	rb, okB := rank(b)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}
	switch av := a.(type) {
	case nil:
		return 0, nil
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv), nil
		}
		return compareIntFloat(av, b.(float64)), nil
	case float64:
		if bv, ok := b.(int64); ok {
			return -compareIntFloat(bv, av), nil
		}
		return cmp.Compare(av, b.(float64)), nil
	case string:
		return strings.Compare(av, b.(string)), nil
	case []byte:
		return bytes.Compare(av, b.([]byte)), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrIncomparable, a)
}

// compareIntFloat compares i and f exactly, without rounding i to a float.
// NaN orders below every integer.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 1<<63:
		return -1
	case f < -(1 << 63):
		return 1
	}
	whole := math.Trunc(f)
	if c := cmp.Compare(i, int64(whole)); c != 0 {
		return c
	}
	return cmp.Compare(0, f-whole)
}

// unwrapCanonical unwraps Canonicaler values to their canonical scalar.
func unwrapCanonical(v any) any {
	if c, ok := v.(Canonicaler); ok {
		return Normalize(c.CanonicalValue())
	}
	return v
}

package value

import "fmt"

// ToFloat converts a numeric element to float64.
func ToFloat(v any) (float64, error) {
	switch n := Normalize(v).(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

// Accumulator sums numbers, staying in int64 until a float is added or
// the integer sum overflows. The zero value is an empty int64 sum.
type Accumulator struct {
	ints    int64
	floats  float64
	isFloat bool
	count   int
}

// Add folds v into the sum.
func (a *Accumulator) Add(v any) error {
	switch n := Normalize(v).(type) {
	case int64:
		if !a.isFloat {
			if sum, ok := addInt64(a.ints, n); ok {
				a.ints = sum
				break
			}
			a.floats = float64(a.ints)
			a.isFloat = true
		}
		a.floats += float64(n)
	case float64:
		if !a.isFloat {
			a.floats = float64(a.ints)
			a.isFloat = true
		}
		a.floats += n
	default:
		return fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
	a.count++
	return nil
}

// addInt64 returns a+b and false when the sum overflows.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// Sum returns int64 when every added value was an integer and the total
// fits, float64 otherwise.
func (a *Accumulator) Sum() any {
	if a.isFloat {
		return a.floats
	}
	return a.ints
}

// Count returns how many values were added.
func (a *Accumulator) Count() int {
	return a.count
}

// Mean returns Sum divided by Count. Callers check Count first.
func (a *Accumulator) Mean() float64 {
	if a.isFloat {
		return a.floats / float64(a.count)
	}
	return float64(a.ints) / float64(a.count)
}

// Sum adds every value.
func Sum(values []any) (any, error) {
	var acc Accumulator
	for _, v := range values {
		if err := acc.Add(v); err != nil {
			return nil, err
		}
	}
	return acc.Sum(), nil
}

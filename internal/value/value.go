package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrIncomparable is returned when two elements have no defined order.
	ErrIncomparable = errors.New("values are not comparable")

	// ErrNotNumeric is returned when a numeric fold meets a non-number.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrNotSequence is returned when a value cannot be flattened into elements.
	ErrNotSequence = errors.New("value is not a sequence")
)

// Row is a record element as produced by table-like sources.
type Row = map[string]any

// Canonicaler is implemented by composite elements (groups, for instance)
// that define their equality and ordering through a plain representation.
type Canonicaler interface {
	CanonicalValue() any
}

// Normalize converts v into the element model.
//
// All integer kinds become int64 (uint64 values beyond the int64 range become
// float64), float32 becomes float64, json.Number becomes int64 or float64, and
// slices and string-keyed maps are normalized recursively. Other values are
// returned unchanged.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int64, float64, []byte:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return normalizeUint(val)
	case float32:
		return float64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = Normalize(elem)
		}
		return out
	default:
		return v
	}
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

// NormalizeAll normalizes every element of values in place and returns it.
func NormalizeAll(values []any) []any {
	for i, v := range values {
		values[i] = Normalize(v)
	}
	return values
}

// NormalizeText normalizes v and puts a string result in NFC, the form
// tables store text in.
func NormalizeText(v any) any {
	v = Normalize(v)
	if s, ok := v.(string); ok {
		return norm.NFC.String(s)
	}
	return v
}

// AsSequence flattens v into elements.
//
// Accepts []any, any other slice or array kind, and Canonicaler values whose
// canonical form is a sequence. Strings and byte slices are scalars.
func AsSequence(v any) ([]any, error) {
	switch val := v.(type) {
	case []any:
		return val, nil
	case nil, string, []byte:
		return nil, fmt.Errorf("%w: %T", ErrNotSequence, v)
	case interface{ Elements() []any }:
		return val.Elements(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T", ErrNotSequence, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = Normalize(rv.Index(i).Interface())
	}
	return out, nil
}

// Format renders a scalar element for string joining.
// nil renders as the empty string; composites render canonically.
func Format(v any) string {
	switch val := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		data, err := Canonical(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

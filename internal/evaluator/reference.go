package evaluator

import (
	"context"
	"slices"
	"strings"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

// Reference answers requests over a materialized, ordered sequence.
//
// Errors from user-supplied keys, predicates and combiners are returned
// unmodified.
type Reference struct {
	values []any
}

var _ request.Dispatcher = (*Reference)(nil)

// NewReference creates a Reference over a copy of values.
func NewReference(values []any) *Reference {
	return &Reference{values: value.NormalizeAll(slices.Clone(values))}
}

// Len returns the number of elements.
func (e *Reference) Len() int {
	return len(e.values)
}

// Values returns a copy of the sequence.
func (e *Reference) Values(_ context.Context, _ request.Values) ([]any, error) {
	return slices.Clone(e.values), nil
}

// First returns the first element.
func (e *Reference) First(_ context.Context, r request.First) (any, error) {
	if len(e.values) == 0 {
		return nil, request.NewEmptySequenceError(r.Kind())
	}
	return e.values[0], nil
}

// Last returns the last element.
func (e *Reference) Last(_ context.Context, r request.Last) (any, error) {
	if len(e.values) == 0 {
		return nil, request.NewEmptySequenceError(r.Kind())
	}
	return e.values[len(e.values)-1], nil
}

func (e *Reference) Count(_ context.Context, _ request.Count) (int, error) {
	return len(e.values), nil
}

func (e *Reference) Exists(_ context.Context, _ request.Exists) (bool, error) {
	return len(e.values) > 0, nil
}

// Contains reports whether an element is canonically equal to r.Value.
func (e *Reference) Contains(_ context.Context, r request.Contains) (bool, error) {
	target := value.Normalize(r.Value)
	for _, v := range e.values {
		if value.Equal(v, target) {
			return true, nil
		}
	}
	return false, nil
}

// Aggregate folds left from r.Seed. The seed is returned for an empty
// sequence. A nil Combine is INVALID_REQUEST even when the sequence is
// empty.
func (e *Reference) Aggregate(_ context.Context, r request.Aggregate) (any, error) {
	if r.Combine == nil {
		return nil, request.NewInvalidRequestError(r.Kind(), "missing combiner")
	}
	acc := r.Seed
	for _, v := range e.values {
		var err error
		acc, err = r.Combine(acc, v)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Maximum returns the first element with the largest key.
func (e *Reference) Maximum(_ context.Context, r request.Maximum) (any, error) {
	return e.extreme(r.Kind(), r.Key, 1)
}

// Minimum returns the first element with the smallest key.
func (e *Reference) Minimum(_ context.Context, r request.Minimum) (any, error) {
	return e.extreme(r.Kind(), r.Key, -1)
}

// extreme scans for the element whose key compares strictly beyond the
// current best in direction sign, so ties keep the earliest element.
func (e *Reference) extreme(kind request.Kind, key query.Key, sign int) (any, error) {
	if len(e.values) == 0 {
		return nil, request.NewEmptySequenceError(kind)
	}
	best := e.values[0]
	bestKey, err := query.ApplyKey(key, best)
	if err != nil {
		return nil, err
	}
	for _, v := range e.values[1:] {
		k, err := query.ApplyKey(key, v)
		if err != nil {
			return nil, err
		}
		c, err := value.Compare(value.Normalize(k), value.Normalize(bestKey))
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best, bestKey = v, k
		}
	}
	return best, nil
}

// Sum returns int64 when every key is an integer, float64 otherwise.
// An empty sequence sums to int64(0).
func (e *Reference) Sum(_ context.Context, r request.Sum) (any, error) {
	acc, err := e.accumulate(r.Key)
	if err != nil {
		return nil, err
	}
	return acc.Sum(), nil
}

func (e *Reference) Average(_ context.Context, r request.Average) (float64, error) {
	if len(e.values) == 0 {
		return 0, request.NewEmptySequenceError(r.Kind())
	}
	acc, err := e.accumulate(r.Key)
	if err != nil {
		return 0, err
	}
	return acc.Mean(), nil
}

func (e *Reference) accumulate(key query.Key) (*value.Accumulator, error) {
	var acc value.Accumulator
	for _, v := range e.values {
		k, err := query.ApplyKey(key, v)
		if err != nil {
			return nil, err
		}
		if err := acc.Add(k); err != nil {
			return nil, err
		}
	}
	return &acc, nil
}

// All is vacuously true for an empty sequence. A nil predicate matches everything.
func (e *Reference) All(_ context.Context, r request.All) (bool, error) {
	if r.Predicate == nil {
		return true, nil
	}
	for _, v := range e.values {
		ok, err := r.Predicate.Test(v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Any is false for an empty sequence. A nil predicate matches everything.
func (e *Reference) Any(_ context.Context, r request.Any) (bool, error) {
	if r.Predicate == nil {
		return len(e.values) > 0, nil
	}
	for _, v := range e.values {
		ok, err := r.Predicate.Test(v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Implode joins the formatted keys with r.Separator. Nil formats as "".
func (e *Reference) Implode(_ context.Context, r request.Implode) (string, error) {
	var b strings.Builder
	for i, v := range e.values {
		k, err := query.ApplyKey(r.Key, v)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString(r.Separator)
		}
		b.WriteString(value.Format(k))
	}
	return b.String(), nil
}

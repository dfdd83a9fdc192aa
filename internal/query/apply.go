package query

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mengzui/Pinq/internal/value"
)

// Materialize enumerates the query's source and applies its operations.
//
// Errors from the source and from user-supplied functions are returned as
// they were raised, without wrapping.
func Materialize(ctx context.Context, q *Query) ([]any, error) {
	if q == nil || q.source == nil {
		return nil, errors.New("query has no source")
	}
	raw, err := q.source.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(ctx, q, raw)
}

// Apply runs the operation chain of q over input, left to right.
// The input slice is not modified.
func Apply(ctx context.Context, q *Query, input []any) ([]any, error) {
	seq := value.NormalizeAll(slices.Clone(input))
	for _, op := range q.operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		seq, err = applyOperation(ctx, op, seq)
		if err != nil {
			return nil, err
		}
	}
	return seq, nil
}

func applyOperation(ctx context.Context, op Operation, seq []any) ([]any, error) {
	switch o := op.(type) {
	case Filter:
		return applyFilter(o, seq)
	case OrderBy:
		return applyOrderBy(o, seq)
	case Skip:
		return skip(seq, o.Amount), nil
	case Take:
		return take(seq, o.Amount), nil
	case Slice:
		return take(skip(seq, o.Start), o.Amount), nil
	case IndexBy:
		return applyIndexBy(o, seq)
	case GroupBy:
		return applyGroupBy(o, seq)
	case Unique:
		return unique(seq)
	case Select:
		return applySelect(o, seq)
	case SelectMany:
		return applySelectMany(o, seq)
	case SetCombine:
		return applySetCombine(ctx, o, seq)
	default:
		return nil, fmt.Errorf("unsupported operation type: %T", op)
	}
}

func applyFilter(f Filter, seq []any) ([]any, error) {
	if f.Predicate == nil {
		return seq, nil
	}
	out := make([]any, 0, len(seq))
	for _, v := range seq {
		ok, err := f.Predicate.Test(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type keyed struct {
	key any
	v   any
}

func applyOrderBy(o OrderBy, seq []any) ([]any, error) {
	items := make([]keyed, len(seq))
	for i, v := range seq {
		k, err := ApplyKey(o.Key, v)
		if err != nil {
			return nil, err
		}
		items[i] = keyed{key: value.Normalize(k), v: v}
	}

	var cmpErr error
	slices.SortStableFunc(items, func(a, b keyed) int {
		c, err := value.Compare(a.key, b.key)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		if !o.Ascending {
			return -c
		}
		return c
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.v
	}
	return out, nil
}

func skip(seq []any, n uint) []any {
	if n >= uint(len(seq)) {
		return []any{}
	}
	return seq[n:]
}

func take(seq []any, n int) []any {
	if n < 0 || n >= len(seq) {
		return seq
	}
	return seq[:n]
}

func applyIndexBy(o IndexBy, seq []any) ([]any, error) {
	positions := make(map[string]int, len(seq))
	out := make([]any, 0, len(seq))
	for _, v := range seq {
		k, err := ApplyKey(o.Key, v)
		if err != nil {
			return nil, err
		}
		ks, err := value.Key(k)
		if err != nil {
			return nil, err
		}
		if pos, ok := positions[ks]; ok {
			out[pos] = v
			continue
		}
		positions[ks] = len(out)
		out = append(out, v)
	}
	return out, nil
}

func applyGroupBy(o GroupBy, seq []any) ([]any, error) {
	groups := make(map[string]*Group)
	out := make([]any, 0)
	for _, v := range seq {
		k, err := ApplyKey(o.Key, v)
		if err != nil {
			return nil, err
		}
		k = value.Normalize(k)
		ks, err := value.Key(k)
		if err != nil {
			return nil, err
		}
		g, ok := groups[ks]
		if !ok {
			g = &Group{Key: k}
			groups[ks] = g
			out = append(out, g)
		}
		g.Values = append(g.Values, v)
	}
	return out, nil
}

func unique(seq []any) ([]any, error) {
	seen := make(map[string]struct{}, len(seq))
	out := make([]any, 0, len(seq))
	for _, v := range seq {
		k, err := value.Key(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

func applySelect(o Select, seq []any) ([]any, error) {
	out := make([]any, len(seq))
	for i, v := range seq {
		p, err := ApplyKey(o.Projector, v)
		if err != nil {
			return nil, err
		}
		out[i] = value.Normalize(p)
	}
	return out, nil
}

func applySelectMany(o SelectMany, seq []any) ([]any, error) {
	out := make([]any, 0, len(seq))
	for _, v := range seq {
		p, err := ApplyKey(o.Projector, v)
		if err != nil {
			return nil, err
		}
		inner, err := value.AsSequence(p)
		if err != nil {
			return nil, err
		}
		out = append(out, value.NormalizeAll(slices.Clone(inner))...)
	}
	return out, nil
}

func applySetCombine(ctx context.Context, o SetCombine, seq []any) ([]any, error) {
	if o.Other == nil {
		return nil, fmt.Errorf("%s: missing operand query", o.Kind)
	}
	other, err := Materialize(ctx, o.Other)
	if err != nil {
		return nil, err
	}

	switch o.Kind {
	case Append:
		return append(slices.Clone(seq), other...), nil
	case Union:
		return unique(append(slices.Clone(seq), other...))
	case Intersect, Except:
		members := make(map[string]struct{}, len(other))
		for _, v := range other {
			k, err := value.Key(v)
			if err != nil {
				return nil, err
			}
			members[k] = struct{}{}
		}
		keep := o.Kind == Intersect
		out := make([]any, 0, len(seq))
		for _, v := range seq {
			k, err := value.Key(v)
			if err != nil {
				return nil, err
			}
			if _, ok := members[k]; ok == keep {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported set operation: %s", o.Kind)
	}
}

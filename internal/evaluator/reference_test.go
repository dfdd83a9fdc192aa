package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

func ints(vs ...int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func TestReference_Values(t *testing.T) {
	ctx := context.Background()
	ref := NewReference(ints(1, 2))

	got, err := ref.Values(ctx, request.Values{})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2), got)

	got[0] = "mutated"
	again, err := ref.Values(ctx, request.Values{})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2), again)
}

func TestReference_FirstLast(t *testing.T) {
	ctx := context.Background()
	ref := NewReference(ints(4, 5, 6))

	first, err := ref.First(ctx, request.First{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), first)

	last, err := ref.Last(ctx, request.Last{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), last)
}

func TestReference_EmptyInput(t *testing.T) {
	ctx := context.Background()
	ref := NewReference(nil)

	n, err := ref.Count(ctx, request.Count{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	exists, err := ref.Exists(ctx, request.Exists{})
	require.NoError(t, err)
	assert.False(t, exists)

	anyMatch, err := ref.Any(ctx, request.Any{Predicate: query.Eq("x", 1)})
	require.NoError(t, err)
	assert.False(t, anyMatch)

	all, err := ref.All(ctx, request.All{Predicate: query.Eq("x", 1)})
	require.NoError(t, err)
	assert.True(t, all)

	s, err := ref.Implode(ctx, request.Implode{Separator: ","})
	require.NoError(t, err)
	assert.Equal(t, "", s)

	sum, err := ref.Sum(ctx, request.Sum{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	seed, err := ref.Aggregate(ctx, request.Aggregate{Seed: "seed", Combine: func(acc, v any) (any, error) {
		return nil, errors.New("must not be called")
	}})
	require.NoError(t, err)
	assert.Equal(t, "seed", seed)

	failing := map[request.Kind]func() error{
		request.KindFirst: func() error { _, err := ref.First(ctx, request.First{}); return err },
		request.KindLast:  func() error { _, err := ref.Last(ctx, request.Last{}); return err },
		request.KindMaximum: func() error {
			_, err := ref.Maximum(ctx, request.Maximum{})
			return err
		},
		request.KindMinimum: func() error {
			_, err := ref.Minimum(ctx, request.Minimum{})
			return err
		},
		request.KindAverage: func() error {
			_, err := ref.Average(ctx, request.Average{})
			return err
		},
	}
	for kind, call := range failing {
		t.Run(string(kind), func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, request.IsEmptySequence(err))

			var re *request.Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, kind, re.Request)
		})
	}
}

func TestReference_Contains(t *testing.T) {
	ctx := context.Background()
	ref := NewReference([]any{int64(1), "a", value.Row{"k": 1}})

	for _, v := range []any{1, 1.0, "a", map[string]any{"k": int32(1)}} {
		ok, err := ref.Contains(ctx, request.Contains{Value: v})
		require.NoError(t, err)
		assert.True(t, ok, "%v", v)
	}

	ok, err := ref.Contains(ctx, request.Contains{Value: "1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReference_Aggregate(t *testing.T) {
	ref := NewReference([]any{"a", "b", "c"})

	got, err := ref.Aggregate(context.Background(), request.Aggregate{
		Seed: ">",
		Combine: func(acc, v any) (any, error) {
			return acc.(string) + v.(string), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ">abc", got)
}

func TestReference_AggregateMissingCombiner(t *testing.T) {
	_, err := NewReference(ints(1)).Aggregate(context.Background(), request.Aggregate{})

	var re *request.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, request.ErrCodeInvalidRequest, re.Code)

	_, err = NewReference(nil).Aggregate(context.Background(), request.Aggregate{Seed: "seed"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, request.ErrCodeInvalidRequest, re.Code)
}

func TestReference_MaximumMinimumTiesPickFirst(t *testing.T) {
	ctx := context.Background()
	rows := []any{
		value.Row{"k": 1, "id": "a"},
		value.Row{"k": 3, "id": "b"},
		value.Row{"k": 3, "id": "c"},
		value.Row{"k": 1, "id": "d"},
	}
	ref := NewReference(rows)

	maxRow, err := ref.Maximum(ctx, request.Maximum{Key: query.Field("k")})
	require.NoError(t, err)
	assert.Equal(t, "b", maxRow.(value.Row)["id"])

	minRow, err := ref.Minimum(ctx, request.Minimum{Key: query.Field("k")})
	require.NoError(t, err)
	assert.Equal(t, "a", minRow.(value.Row)["id"])
}

func TestReference_MaximumOfScalars(t *testing.T) {
	got, err := NewReference([]any{int64(2), 2.5, int64(1)}).Maximum(context.Background(), request.Maximum{})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestReference_SumAverage(t *testing.T) {
	ctx := context.Background()

	sum, err := NewReference(ints(1, 2, 3)).Sum(ctx, request.Sum{Key: query.Identity})
	require.NoError(t, err)
	assert.Equal(t, int64(6), sum)

	sum, err = NewReference([]any{int64(1), 0.5}).Sum(ctx, request.Sum{})
	require.NoError(t, err)
	assert.Equal(t, 1.5, sum)

	avg, err := NewReference(ints(1, 2)).Average(ctx, request.Average{})
	require.NoError(t, err)
	assert.Equal(t, 1.5, avg)

	_, err = NewReference([]any{"x"}).Sum(ctx, request.Sum{})
	assert.ErrorIs(t, err, value.ErrNotNumeric)
}

func TestReference_AllAny(t *testing.T) {
	ctx := context.Background()
	ref := NewReference([]any{value.Row{"n": 1}, value.Row{"n": 5}})

	all, err := ref.All(ctx, request.All{Predicate: query.Gt("n", 0)})
	require.NoError(t, err)
	assert.True(t, all)

	all, err = ref.All(ctx, request.All{Predicate: query.Gt("n", 1)})
	require.NoError(t, err)
	assert.False(t, all)

	anyMatch, err := ref.Any(ctx, request.Any{Predicate: query.Eq("n", 5)})
	require.NoError(t, err)
	assert.True(t, anyMatch)

	anyMatch, err = ref.Any(ctx, request.Any{})
	require.NoError(t, err)
	assert.True(t, anyMatch)
}

func TestReference_Implode(t *testing.T) {
	ctx := context.Background()

	s, err := NewReference([]any{int64(1), "b", nil, 2.5, true}).Implode(ctx, request.Implode{Separator: "-"})
	require.NoError(t, err)
	assert.Equal(t, "1-b--2.5-true", s)

	rows := NewReference([]any{value.Row{"name": "x"}, value.Row{"name": "y"}})
	s, err = rows.Implode(ctx, request.Implode{Separator: ", ", Key: query.Field("name")})
	require.NoError(t, err)
	assert.Equal(t, "x, y", s)
}

func TestReference_UserErrorsReturnedVerbatim(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("user function failed")
	badKey := query.KeyFunc(func(any) (any, error) { return nil, boom })
	badPred := query.PredicateFunc(func(any) (bool, error) { return false, boom })
	ref := NewReference(ints(1, 2))

	calls := []func() error{
		func() error { _, err := ref.Maximum(ctx, request.Maximum{Key: badKey}); return err },
		func() error { _, err := ref.Minimum(ctx, request.Minimum{Key: badKey}); return err },
		func() error { _, err := ref.Sum(ctx, request.Sum{Key: badKey}); return err },
		func() error { _, err := ref.Average(ctx, request.Average{Key: badKey}); return err },
		func() error { _, err := ref.Implode(ctx, request.Implode{Key: badKey}); return err },
		func() error { _, err := ref.All(ctx, request.All{Predicate: badPred}); return err },
		func() error { _, err := ref.Any(ctx, request.Any{Predicate: badPred}); return err },
		func() error {
			_, err := ref.Aggregate(ctx, request.Aggregate{Combine: func(any, any) (any, error) { return nil, boom }})
			return err
		},
	}
	for _, call := range calls {
		assert.Same(t, boom, call())
	}
}

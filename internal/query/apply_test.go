package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/value"
)

func materialize(t *testing.T, q *Query) []any {
	t.Helper()
	out, err := Materialize(context.Background(), q)
	require.NoError(t, err)
	return out
}

func ints(vs ...int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func TestApply_OrderByTake(t *testing.T) {
	q := From(3, 1, 2).OrderBy(Identity).Take(2)
	assert.Equal(t, ints(1, 2), materialize(t, q))
}

func TestApply_OrderByDescending(t *testing.T) {
	q := From(3, 1, 2).OrderByDescending(Identity)
	assert.Equal(t, ints(3, 2, 1), materialize(t, q))
}

func TestApply_OrderByIsStable(t *testing.T) {
	rows := []any{
		value.Row{"k": 1, "id": "a"},
		value.Row{"k": 0, "id": "b"},
		value.Row{"k": 1, "id": "c"},
		value.Row{"k": 0, "id": "d"},
	}
	out := materialize(t, From(rows...).OrderBy(Field("k")).Select(Field("id")))
	assert.Equal(t, []any{"b", "d", "a", "c"}, out)
}

func TestApply_ConsecutiveOrderByLastIsPrimary(t *testing.T) {
	rows := []any{
		value.Row{"a": 2, "b": 1},
		value.Row{"a": 1, "b": 2},
		value.Row{"a": 1, "b": 1},
	}
	out := materialize(t, From(rows...).OrderBy(Field("a")).OrderBy(Field("b")))
	assert.Equal(t, []any{
		value.Row{"a": int64(1), "b": int64(1)},
		value.Row{"a": int64(2), "b": int64(1)},
		value.Row{"a": int64(1), "b": int64(2)},
	}, out)
}

func TestApply_OrderByMixedTypes(t *testing.T) {
	out := materialize(t, From("b", 2, nil, true, 1.5).OrderBy(Identity))
	assert.Equal(t, []any{nil, true, 1.5, int64(2), "b"}, out)
}

func TestApply_SkipTakeSlice(t *testing.T) {
	base := From(1, 2, 3, 4, 5)

	tests := []struct {
		name string
		q    *Query
		want []any
	}{
		{"skip", base.Skip(2), ints(3, 4, 5)},
		{"skip past end", base.Skip(10), ints()},
		{"take", base.Take(2), ints(1, 2)},
		{"take zero", base.Take(0), ints()},
		{"take unbounded", base.Take(Unbounded), ints(1, 2, 3, 4, 5)},
		{"take more than available", base.Take(10), ints(1, 2, 3, 4, 5)},
		{"slice", base.Slice(1, 2), ints(2, 3)},
		{"slice unbounded", base.Slice(3, Unbounded), ints(4, 5)},
		{"slice past end", base.Slice(9, 2), ints()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, materialize(t, tt.q))
		})
	}
}

func TestApply_FilterComparison(t *testing.T) {
	rows := []any{
		value.Row{"n": 1},
		value.Row{"n": nil},
		value.Row{"n": 3},
	}

	out := materialize(t, From(rows...).Where(Ge("n", 2)))
	assert.Equal(t, []any{value.Row{"n": int64(3)}}, out)

	// NULL never satisfies a comparison, not even inequality.
	out = materialize(t, From(rows...).Where(Ne("n", 1)))
	assert.Equal(t, []any{value.Row{"n": int64(3)}}, out)
}

func TestApply_FilterMissingField(t *testing.T) {
	_, err := Materialize(context.Background(), From(value.Row{"a": 1}).Where(Eq("b", 1)))
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestApply_NilPredicateKeepsAll(t *testing.T) {
	assert.Equal(t, ints(1, 2), materialize(t, From(1, 2).Where(nil)))
}

func TestApply_IndexBy(t *testing.T) {
	rows := []any{
		value.Row{"k": "a", "v": 1},
		value.Row{"k": "b", "v": 2},
		value.Row{"k": "a", "v": 3},
	}
	out := materialize(t, From(rows...).IndexBy(Field("k")).Select(Field("v")))
	assert.Equal(t, ints(3, 2), out)
}

func TestApply_GroupBy(t *testing.T) {
	out := materialize(t, From(1, 2, 3, 4, 5).GroupBy(KeyFunc(func(v any) (any, error) {
		return v.(int64) % 2, nil
	})))

	require.Len(t, out, 2)
	odd := out[0].(*Group)
	even := out[1].(*Group)
	assert.Equal(t, int64(1), odd.Key)
	assert.Equal(t, ints(1, 3, 5), odd.Values)
	assert.Equal(t, int64(0), even.Key)
	assert.Equal(t, ints(2, 4), even.Elements())
	assert.Equal(t, 2, even.Count())
}

func TestApply_GroupsFlattenWithSelectMany(t *testing.T) {
	q := From(1, 2, 3).GroupBy(KeyFunc(func(v any) (any, error) {
		return v.(int64) > 1, nil
	})).SelectMany(Identity)
	assert.Equal(t, ints(1, 2, 3), materialize(t, q))
}

func TestApply_Unique(t *testing.T) {
	out := materialize(t, From(1, 1.0, "1", 2, 1).Unique())
	assert.Equal(t, []any{int64(1), "1", int64(2)}, out)
}

func TestApply_SelectMany(t *testing.T) {
	q := From([]any{1, 2}, []int{3}, []any{}).SelectMany(Identity)
	assert.Equal(t, ints(1, 2, 3), materialize(t, q))
}

func TestApply_SelectManyRejectsScalar(t *testing.T) {
	_, err := Materialize(context.Background(), From(1).SelectMany(Identity))
	assert.ErrorIs(t, err, value.ErrNotSequence)
}

func TestApply_SetOperations(t *testing.T) {
	left := From(1, 2, 2, 3)
	right := From(2, 4)

	assert.Equal(t, ints(1, 2, 2, 3, 2, 4), materialize(t, left.Append(right)))
	assert.Equal(t, ints(1, 2, 3, 4), materialize(t, left.Union(right)))
	assert.Equal(t, ints(2, 2), materialize(t, left.Intersect(right)))
	assert.Equal(t, ints(1, 3), materialize(t, left.Except(right)))
}

func TestApply_SetOperandMissing(t *testing.T) {
	_, err := Materialize(context.Background(), From(1).Union(nil))
	assert.Error(t, err)
}

func TestApply_UserErrorReturnedVerbatim(t *testing.T) {
	boom := errors.New("projector failed")
	q := From(1).SelectFunc(func(any) (any, error) { return nil, boom })

	_, err := Materialize(context.Background(), q)
	assert.Same(t, boom, err)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	input := ints(3, 1, 2)
	q := New(nil).OrderBy(Identity)

	out, err := Apply(context.Background(), q, input)
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2, 3), out)
	assert.Equal(t, ints(3, 1, 2), input)
}

func TestMaterialize_NilSource(t *testing.T) {
	_, err := Materialize(context.Background(), New(nil))
	assert.Error(t, err)

	_, err = Materialize(context.Background(), nil)
	assert.Error(t, err)
}

func TestApply_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Apply(ctx, From().Take(1), ints(1))
	assert.ErrorIs(t, err, context.Canceled)
}

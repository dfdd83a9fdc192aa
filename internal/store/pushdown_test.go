package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/testutil"
)

func TestTable_CountPushedDown(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))
	obs := &testutil.RecordingObserver{}

	e := evaluator.New(table.Query().Where(query.Eq("status", "open")), evaluator.WithObserver(obs))
	n, err := e.Count(ctx, request.Count{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, e.IsLoaded())
	assert.Equal(t, []string{"pushdown:count"}, obs.Events())
}

func TestTable_FirstLastWithOrderAndWindow(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))
	q := table.Query().OrderByDescending(query.Field("total")).Skip(1).Take(2)

	first, ok, err := table.TryFirst(ctx, q, request.First{})
	require.NoError(t, err)
	require.True(t, ok)
	// Stable: ids 1 and 4 tie on total 30, so id 4 follows id 1.
	assert.Equal(t, order(4, "open", int64(30)), first)

	last, ok, err := table.TryLast(ctx, q, request.Last{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order(3, "open", int64(20)), last)
}

func TestTable_EmptyWindowFails(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))
	q := table.Query().Skip(10)

	_, ok, err := table.TryFirst(ctx, q, request.First{})
	assert.True(t, ok)
	assert.True(t, request.IsEmptySequence(err))

	_, ok, err = table.TryAverage(ctx, q, request.Average{Key: query.Field("total")})
	assert.True(t, ok)
	assert.True(t, request.IsEmptySequence(err))
}

func TestTable_SumDeclinesOnNull(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))

	_, ok, err := table.TrySum(ctx, table.Query(), request.Sum{Key: query.Field("total")})
	require.NoError(t, err)
	assert.False(t, ok, "row 5 has a NULL total")

	sum, ok, err := table.TrySum(ctx, table.Query().Take(4), request.Sum{Key: query.Field("total")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(90), sum)
}

func TestTable_DeclinesForeignQuery(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))

	_, ok, err := table.TryCount(ctx, query.From(1, 2), request.Count{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = table.Explain(query.From(), request.Count{})
	assert.Error(t, err)
}

func TestTable_Explain(t *testing.T) {
	table := createOrdersTable(t, createTestStore(t))

	st, err := table.Explain(table.Query().Where(query.Eq("status", "open")), request.Count{})
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `FROM "orders" WHERE "status" = ?`)
	assert.Equal(t, []any{"open"}, st.Params)
}

// TestTable_GroundTruthEquivalence checks that every pushed-down answer
// equals the answer from a fully materialized evaluator.
func TestTable_GroundTruthEquivalence(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	table := createOrdersTable(t, s)

	require.NoError(t, s.CreateTable(ctx, "mixed", []string{"k", "v"}))
	require.NoError(t, s.Insert(ctx, "mixed",
		valueRow("b", 1.5),
		valueRow(nil, 2),
		valueRow(3, "x"),
		valueRow("a", 2.0),
		valueRow(1, -4),
		valueRow([]byte("z"), 2),
	))
	mixed, err := s.Table(ctx, "mixed")
	require.NoError(t, err)

	require.NoError(t, s.CreateTable(ctx, "edge", []string{"n", "s"}))
	require.NoError(t, s.Insert(ctx, "edge",
		map[string]any{"n": int64(math.MaxInt64), "s": "\u00e9"},
		map[string]any{"n": int64(1), "s": "e"},
		map[string]any{"n": int64(1<<53 + 1), "s": "e\u0301"},
	))
	edge, err := s.Table(ctx, "edge")
	require.NoError(t, err)

	queries := map[string]*query.Query{
		"all orders":         table.Query(),
		"open orders":        table.Query().Where(query.Eq("status", "open")),
		"by total desc":      table.Query().OrderByDescending(query.Field("total")),
		"two-key order":      table.Query().OrderBy(query.Field("id")).OrderByDescending(query.Field("status")),
		"window":             table.Query().OrderBy(query.Field("total")).Slice(1, 3),
		"skip all":           table.Query().Skip(9),
		"take zero":          table.Query().Take(0),
		"range filter":       table.Query().Where(query.AllOf(query.Ge("total", 15), query.Lt("total", 31))),
		"not equal":          table.Query().Where(query.Ne("status", "open")),
		"mixed":              mixed.Query(),
		"mixed by k":         mixed.Query().OrderBy(query.Field("k")),
		"mixed by k desc":    mixed.Query().OrderByDescending(query.Field("k")).Take(4),
		"mixed numeric k":    mixed.Query().Where(query.Lt("k", "a")),
		"mixed string above": mixed.Query().Where(query.Gt("k", 2)),
		"edge":               edge.Query(),
		"edge skip 2^63":     edge.Query().Skip(1 << 63),
		"edge skip twice":    edge.Query().Skip(math.MaxInt64).Skip(math.MaxInt64),
		"edge slice at end":  edge.Query().Slice(math.MaxInt64, 1),
		"edge near max":      edge.Query().Skip(math.MaxInt64 - 1).Take(5),
		"edge above 2^53":    edge.Query().Where(query.Gt("n", float64(1<<53))),
		"edge at 2^53":       edge.Query().Where(query.Le("n", float64(1<<53))),
		"edge decomposed gt": edge.Query().Where(query.Gt("s", "e\u0301")),
		"edge decomposed ge": edge.Query().Where(query.Ge("s", "e\u0301")),
		"edge small n":       edge.Query().Where(query.Lt("n", 2)),
	}

	requests := []request.Request{
		request.Count{},
		request.Exists{},
		request.First{},
		request.Last{},
		request.Maximum{Key: query.Field("total")},
		request.Minimum{Key: query.Field("total")},
		request.Maximum{Key: query.Field("k")},
		request.Minimum{Key: query.Field("v")},
		request.Sum{Key: query.Field("total")},
		request.Sum{Key: query.Field("v")},
		request.Average{Key: query.Field("total")},
		request.Average{Key: query.Field("id")},
		request.Any{Predicate: query.Eq("status", "void")},
		request.All{Predicate: query.Gt("total", 5)},
		request.All{Predicate: query.Ne("k", "b")},
		request.Any{Predicate: query.Ge("v", 2)},
		request.Sum{Key: query.Field("n")},
		request.Average{Key: query.Field("n")},
		request.Maximum{Key: query.Field("n")},
		request.Minimum{Key: query.Field("s")},
		request.Any{Predicate: query.Lt("s", "e\u0301")},
	}

	for name, q := range queries {
		for _, r := range requests {
			pushed := evaluator.New(q)
			gotPushed, errPushed := request.Dispatch(ctx, pushed, r)

			loaded := evaluator.New(q)
			_, err := loaded.Values(ctx, request.Values{})
			require.NoError(t, err)
			gotLoaded, errLoaded := request.Dispatch(ctx, loaded, r)

			if errLoaded != nil {
				assert.Error(t, errPushed, "%s / %s", name, r.Kind())
				assert.Equal(t, request.IsEmptySequence(errLoaded), request.IsEmptySequence(errPushed), "%s / %s", name, r.Kind())
				continue
			}
			require.NoError(t, errPushed, "%s / %s", name, r.Kind())
			assert.Equal(t, gotLoaded, gotPushed, "%s / %s", name, r.Kind())
		}
	}
}

func valueRow(k, v any) map[string]any {
	return map[string]any{"k": k, "v": v}
}

func TestTable_OutOfRangeSkipDeclines(t *testing.T) {
	ctx := context.Background()
	table := createOrdersTable(t, createTestStore(t))
	obs := &testutil.RecordingObserver{}

	e := evaluator.New(table.Query().Skip(1<<63), evaluator.WithObserver(obs))
	n, err := e.Count(ctx, request.Count{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"declined:count", "materialized"}, obs.Events())
}

func TestTable_SumOverflowDeclines(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateTable(ctx, "big", []string{"n"}))
	require.NoError(t, s.Insert(ctx, "big",
		map[string]any{"n": int64(math.MaxInt64)},
		map[string]any{"n": int64(1)},
	))
	table, err := s.Table(ctx, "big")
	require.NoError(t, err)

	obs := &testutil.RecordingObserver{}
	e := evaluator.New(table.Query(), evaluator.WithObserver(obs))
	sum, err := e.Sum(ctx, request.Sum{Key: query.Field("n")})
	require.NoError(t, err)
	assert.Equal(t, float64(math.MaxInt64)+1, sum)
	assert.Equal(t, []string{"declined:sum", "materialized"}, obs.Events())

	avg, ok, err := table.TryAverage(ctx, table.Query(), request.Average{Key: query.Field("n")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, avg)
}

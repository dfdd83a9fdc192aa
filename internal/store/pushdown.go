package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/querysql"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

var (
	_ query.Source           = (*Table)(nil)
	_ evaluator.CountHook    = (*Table)(nil)
	_ evaluator.ExistsHook   = (*Table)(nil)
	_ evaluator.FirstHook    = (*Table)(nil)
	_ evaluator.LastHook     = (*Table)(nil)
	_ evaluator.MaximumHook  = (*Table)(nil)
	_ evaluator.MinimumHook  = (*Table)(nil)
	_ evaluator.SumHook      = (*Table)(nil)
	_ evaluator.AverageHook  = (*Table)(nil)
	_ evaluator.AllHook      = (*Table)(nil)
	_ evaluator.AnyHook      = (*Table)(nil)
)

// Explain returns the statement a request would be pushed down as.
// The error wraps querysql.ErrNotPortable when the request would be declined.
func (t *Table) Explain(q *query.Query, r request.Request) (querysql.Statement, error) {
	if q == nil || q.Source() != query.Source(t) {
		return querysql.Statement{}, fmt.Errorf("%w: query is not over table %s", querysql.ErrNotPortable, t.name)
	}
	return t.compiler.Compile(q, r)
}

// compile returns the statement for r, or ok=false when it must be declined.
func (t *Table) compile(q *query.Query, r request.Request) (querysql.Statement, bool, error) {
	st, err := t.Explain(q, r)
	if errors.Is(err, querysql.ErrNotPortable) {
		slog.Debug("sql pushdown declined",
			"table", t.name,
			"request", r.Kind(),
			"reason", err.Error(),
		)
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	slog.Debug("sql pushdown",
		"table", t.name,
		"request", r.Kind(),
		"sql", st.SQL,
	)
	return st, true, nil
}

func (t *Table) scalar(ctx context.Context, st querysql.Statement) (int64, error) {
	var n int64
	if err := t.store.db.QueryRowContext(ctx, st.SQL, st.Params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("pushdown %s: %w", t.name, err)
	}
	return n, nil
}

// row reads at most one row. found is false for an empty result.
func (t *Table) row(ctx context.Context, st querysql.Statement) (value.Row, bool, error) {
	rows, err := t.store.db.QueryContext(ctx, st.SQL, st.Params...)
	if err != nil {
		return nil, false, fmt.Errorf("pushdown %s: %w", t.name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("pushdown %s: %w", t.name, err)
		}
		return nil, false, nil
	}
	row, err := scanRow(rows, t.columns)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// errIntegerOverflow marks a SUM that SQLite could not hold in an integer.
var errIntegerOverflow = errors.New("integer overflow")

// sum reads (sum, count, non-integer count).
func (t *Table) sum(ctx context.Context, st querysql.Statement) (int64, int64, int64, error) {
	var total, count, nonInteger sql.NullInt64
	if err := t.store.db.QueryRowContext(ctx, st.SQL, st.Params...).Scan(&total, &count, &nonInteger); err != nil {
		if strings.Contains(err.Error(), "integer overflow") {
			return 0, 0, 0, errIntegerOverflow
		}
		return 0, 0, 0, fmt.Errorf("pushdown %s: %w", t.name, err)
	}
	return total.Int64, count.Int64, nonInteger.Int64, nil
}

func (t *Table) TryCount(ctx context.Context, q *query.Query, r request.Count) (int, bool, error) {
	st, ok, err := t.compile(q, r)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := t.scalar(ctx, st)
	return int(n), true, err
}

func (t *Table) TryExists(ctx context.Context, q *query.Query, r request.Exists) (bool, bool, error) {
	return t.tryBool(ctx, q, r)
}

func (t *Table) TryAll(ctx context.Context, q *query.Query, r request.All) (bool, bool, error) {
	return t.tryBool(ctx, q, r)
}

func (t *Table) TryAny(ctx context.Context, q *query.Query, r request.Any) (bool, bool, error) {
	return t.tryBool(ctx, q, r)
}

func (t *Table) tryBool(ctx context.Context, q *query.Query, r request.Request) (bool, bool, error) {
	st, ok, err := t.compile(q, r)
	if !ok || err != nil {
		return false, ok, err
	}
	n, err := t.scalar(ctx, st)
	return n != 0, true, err
}

func (t *Table) TryFirst(ctx context.Context, q *query.Query, r request.First) (any, bool, error) {
	return t.tryRow(ctx, q, r)
}

func (t *Table) TryLast(ctx context.Context, q *query.Query, r request.Last) (any, bool, error) {
	return t.tryRow(ctx, q, r)
}

func (t *Table) TryMaximum(ctx context.Context, q *query.Query, r request.Maximum) (any, bool, error) {
	return t.tryRow(ctx, q, r)
}

func (t *Table) TryMinimum(ctx context.Context, q *query.Query, r request.Minimum) (any, bool, error) {
	return t.tryRow(ctx, q, r)
}

// tryRow answers requests that select one element. No row means the
// positioned sequence is empty.
func (t *Table) tryRow(ctx context.Context, q *query.Query, r request.Request) (any, bool, error) {
	st, ok, err := t.compile(q, r)
	if !ok || err != nil {
		return nil, ok, err
	}
	row, found, err := t.row(ctx, st)
	if err != nil {
		return nil, true, err
	}
	if !found {
		return nil, true, request.NewEmptySequenceError(r.Kind())
	}
	return row, true, nil
}

// TrySum answers only when every summed value is an integer and the total
// fits an int64.
func (t *Table) TrySum(ctx context.Context, q *query.Query, r request.Sum) (any, bool, error) {
	st, ok, err := t.compile(q, r)
	if !ok || err != nil {
		return nil, ok, err
	}
	total, _, nonInteger, err := t.sum(ctx, st)
	if errors.Is(err, errIntegerOverflow) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	if nonInteger > 0 {
		return nil, false, nil
	}
	return total, true, nil
}

// TryAverage follows TrySum and reports an empty sequence for zero rows.
func (t *Table) TryAverage(ctx context.Context, q *query.Query, r request.Average) (float64, bool, error) {
	st, ok, err := t.compile(q, r)
	if !ok || err != nil {
		return 0, ok, err
	}
	total, count, nonInteger, err := t.sum(ctx, st)
	if errors.Is(err, errIntegerOverflow) {
		return 0, false, nil
	}
	if err != nil {
		return 0, true, err
	}
	if count == 0 {
		return 0, true, request.NewEmptySequenceError(r.Kind())
	}
	if nonInteger > 0 {
		return 0, false, nil
	}
	return float64(total) / float64(count), true, nil
}

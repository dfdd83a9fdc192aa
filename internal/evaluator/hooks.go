package evaluator

import (
	"context"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
)

// Direct-evaluation hooks.
//
// A source may implement any subset of these interfaces. Loadable offers a
// request to the matching hook only while it is unloaded. Each hook receives
// the full Query (the source is q.Source()) and returns:
//
//   - (result, true, nil) when it answered the request.
//   - (zero, true, err) when it answered with a failure, such as an empty
//     sequence error computed by the source. The error is returned as is.
//   - (zero, false, nil) when it declines. Loadable then materializes.
//
// A non-nil error is always surfaced, whatever ok says.
//
// Answers must equal what the Reference evaluator returns for the
// materialized query, and hooks must only read from the source.
// There is no Values hook: Values always materializes.

// FirstHook evaluates First directly.
type FirstHook interface {
	TryFirst(ctx context.Context, q *query.Query, r request.First) (any, bool, error)
}

// LastHook evaluates Last directly.
type LastHook interface {
	TryLast(ctx context.Context, q *query.Query, r request.Last) (any, bool, error)
}

// CountHook evaluates Count directly.
type CountHook interface {
	TryCount(ctx context.Context, q *query.Query, r request.Count) (int, bool, error)
}

// ExistsHook evaluates Exists directly.
type ExistsHook interface {
	TryExists(ctx context.Context, q *query.Query, r request.Exists) (bool, bool, error)
}

// ContainsHook evaluates Contains directly.
type ContainsHook interface {
	TryContains(ctx context.Context, q *query.Query, r request.Contains) (bool, bool, error)
}

// AggregateHook evaluates Aggregate directly.
type AggregateHook interface {
	TryAggregate(ctx context.Context, q *query.Query, r request.Aggregate) (any, bool, error)
}

// MaximumHook evaluates Maximum directly.
type MaximumHook interface {
	TryMaximum(ctx context.Context, q *query.Query, r request.Maximum) (any, bool, error)
}

// MinimumHook evaluates Minimum directly.
type MinimumHook interface {
	TryMinimum(ctx context.Context, q *query.Query, r request.Minimum) (any, bool, error)
}

// SumHook evaluates Sum directly.
type SumHook interface {
	TrySum(ctx context.Context, q *query.Query, r request.Sum) (any, bool, error)
}

// AverageHook evaluates Average directly.
type AverageHook interface {
	TryAverage(ctx context.Context, q *query.Query, r request.Average) (float64, bool, error)
}

// AllHook evaluates All directly.
type AllHook interface {
	TryAll(ctx context.Context, q *query.Query, r request.All) (bool, bool, error)
}

// AnyHook evaluates Any directly.
type AnyHook interface {
	TryAny(ctx context.Context, q *query.Query, r request.Any) (bool, bool, error)
}

// ImplodeHook evaluates Implode directly.
type ImplodeHook interface {
	TryImplode(ctx context.Context, q *query.Query, r request.Implode) (string, bool, error)
}

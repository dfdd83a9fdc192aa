package evaluator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
)

// Loadable is the push-down-then-materialize evaluator for one Query.
//
// State model:
//   - Unloaded: requests are offered to the source's hooks.
//   - Loaded: the query was materialized once; a Reference over that
//     snapshot answers every request, and the source is never read again.
//
// INVARIANTS:
//   - The source is enumerated at most once per successful load.
//   - Once loaded, the cached Reference is never replaced or cleared.
//   - A failed enumeration leaves the evaluator unloaded.
type Loadable struct {
	id       string
	query    *query.Query
	source   query.Source
	observer Observer

	mu     sync.Mutex                // serializes the load transition
	cached atomic.Pointer[Reference] // nil until loaded
}

var _ request.Dispatcher = (*Loadable)(nil)

// Option configures a Loadable.
type Option func(*Loadable)

// WithIDGenerator sets the generator for the evaluator ID.
//
// Default: UUIDv7Generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Loadable) {
		e.id = gen.Generate()
	}
}

// WithObserver sets the observer notified of evaluation events.
func WithObserver(o Observer) Option {
	return func(e *Loadable) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an unloaded evaluator bound to q and its source.
func New(q *query.Query, opts ...Option) *Loadable {
	e := &Loadable{
		query:    q,
		observer: NopObserver{},
	}
	if q != nil {
		e.source = q.Source()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = UUIDv7Generator{}.Generate()
	}
	return e
}

// ID returns the evaluator ID attached to log records.
func (e *Loadable) ID() string {
	return e.id
}

// Query returns the bound query.
func (e *Loadable) Query() *query.Query {
	return e.query
}

// IsLoaded reports whether the query has been materialized.
func (e *Loadable) IsLoaded() bool {
	return e.cached.Load() != nil
}

// load materializes the query on first use and returns the cached Reference.
func (e *Loadable) load(ctx context.Context) (*Reference, error) {
	if ref := e.cached.Load(); ref != nil {
		return ref, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have loaded while we waited.
	if ref := e.cached.Load(); ref != nil {
		return ref, nil
	}

	start := time.Now()
	values, err := query.Materialize(ctx, e.query)
	if err != nil {
		slog.Debug("materialization failed",
			"evaluator", e.id,
			"error", err,
		)
		return nil, err
	}

	ref := NewReference(values)
	e.cached.Store(ref)
	e.observer.Materialized(ref.Len())

	slog.Debug("query materialized",
		"evaluator", e.id,
		"operations", e.query.Len(),
		"elements", ref.Len(),
		"duration", time.Since(start),
	)
	return ref, nil
}

// evaluate runs the shared request flow: cached Reference, then hook, then load.
// hook is nil when the source does not implement the variant's hook.
func evaluate[T any](
	ctx context.Context,
	e *Loadable,
	kind request.Kind,
	hook func() (T, bool, error),
	answer func(*Reference) (T, error),
) (T, error) {
	if ref := e.cached.Load(); ref != nil {
		e.observer.Cached(kind)
		return answer(ref)
	}

	if hook != nil {
		result, ok, err := hook()
		if ok || err != nil {
			e.observer.Pushdown(kind)
			slog.Debug("request pushed down",
				"evaluator", e.id,
				"request", kind,
				"error", err,
			)
			return result, err
		}
	}

	e.observer.Declined(kind)
	slog.Debug("request needs materialization",
		"evaluator", e.id,
		"request", kind,
	)
	ref, err := e.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return answer(ref)
}

// Values materializes on first call and returns the snapshot. Values has
// no hook, so an unloaded evaluator always reports it as declined.
func (e *Loadable) Values(ctx context.Context, r request.Values) ([]any, error) {
	if ref := e.cached.Load(); ref != nil {
		e.observer.Cached(r.Kind())
		return ref.Values(ctx, r)
	}
	e.observer.Declined(r.Kind())
	ref, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Values(ctx, r)
}

func (e *Loadable) First(ctx context.Context, r request.First) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(FirstHook); ok {
		hook = func() (any, bool, error) { return h.TryFirst(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.First(ctx, r)
	})
}

func (e *Loadable) Last(ctx context.Context, r request.Last) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(LastHook); ok {
		hook = func() (any, bool, error) { return h.TryLast(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.Last(ctx, r)
	})
}

func (e *Loadable) Count(ctx context.Context, r request.Count) (int, error) {
	var hook func() (int, bool, error)
	if h, ok := e.source.(CountHook); ok {
		hook = func() (int, bool, error) { return h.TryCount(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (int, error) {
		return ref.Count(ctx, r)
	})
}

func (e *Loadable) Exists(ctx context.Context, r request.Exists) (bool, error) {
	var hook func() (bool, bool, error)
	if h, ok := e.source.(ExistsHook); ok {
		hook = func() (bool, bool, error) { return h.TryExists(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (bool, error) {
		return ref.Exists(ctx, r)
	})
}

func (e *Loadable) Contains(ctx context.Context, r request.Contains) (bool, error) {
	var hook func() (bool, bool, error)
	if h, ok := e.source.(ContainsHook); ok {
		hook = func() (bool, bool, error) { return h.TryContains(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (bool, error) {
		return ref.Contains(ctx, r)
	})
}

func (e *Loadable) Aggregate(ctx context.Context, r request.Aggregate) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(AggregateHook); ok {
		hook = func() (any, bool, error) { return h.TryAggregate(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.Aggregate(ctx, r)
	})
}

func (e *Loadable) Maximum(ctx context.Context, r request.Maximum) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(MaximumHook); ok {
		hook = func() (any, bool, error) { return h.TryMaximum(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.Maximum(ctx, r)
	})
}

func (e *Loadable) Minimum(ctx context.Context, r request.Minimum) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(MinimumHook); ok {
		hook = func() (any, bool, error) { return h.TryMinimum(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.Minimum(ctx, r)
	})
}

func (e *Loadable) Sum(ctx context.Context, r request.Sum) (any, error) {
	var hook func() (any, bool, error)
	if h, ok := e.source.(SumHook); ok {
		hook = func() (any, bool, error) { return h.TrySum(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (any, error) {
		return ref.Sum(ctx, r)
	})
}

func (e *Loadable) Average(ctx context.Context, r request.Average) (float64, error) {
	var hook func() (float64, bool, error)
	if h, ok := e.source.(AverageHook); ok {
		hook = func() (float64, bool, error) { return h.TryAverage(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (float64, error) {
		return ref.Average(ctx, r)
	})
}

func (e *Loadable) All(ctx context.Context, r request.All) (bool, error) {
	var hook func() (bool, bool, error)
	if h, ok := e.source.(AllHook); ok {
		hook = func() (bool, bool, error) { return h.TryAll(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (bool, error) {
		return ref.All(ctx, r)
	})
}

func (e *Loadable) Any(ctx context.Context, r request.Any) (bool, error) {
	var hook func() (bool, bool, error)
	if h, ok := e.source.(AnyHook); ok {
		hook = func() (bool, bool, error) { return h.TryAny(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (bool, error) {
		return ref.Any(ctx, r)
	})
}

func (e *Loadable) Implode(ctx context.Context, r request.Implode) (string, error) {
	var hook func() (string, bool, error)
	if h, ok := e.source.(ImplodeHook); ok {
		hook = func() (string, bool, error) { return h.TryImplode(ctx, e.query, r) }
	}
	return evaluate(ctx, e, r.Kind(), hook, func(ref *Reference) (string, error) {
		return ref.Implode(ctx, r)
	})
}

package evaluator

import "github.com/mengzui/Pinq/internal/request"

// Observer receives evaluation events from Loadable.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Pushdown is called when a source hook answered a request.
	Pushdown(kind request.Kind)

	// Declined is called when no hook answered and the request needs
	// the materialized sequence.
	Declined(kind request.Kind)

	// Cached is called when a request is answered by the cached Reference.
	Cached(kind request.Kind)

	// Materialized is called once, after the query was materialized into
	// n elements.
	Materialized(n int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Pushdown(request.Kind) {}
func (NopObserver) Declined(request.Kind) {}
func (NopObserver) Cached(request.Kind)   {}
func (NopObserver) Materialized(int)      {}

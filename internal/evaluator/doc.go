// Package evaluator answers requests against queries.
//
// Two Dispatcher implementations live here:
//
//   - Reference evaluates every request over an already-materialized
//     sequence. It is the ground truth for request semantics.
//   - Loadable is bound to one Query. While unloaded it offers each request
//     to the optional hooks implemented by the query's source (push-down
//     evaluation). The first request that a hook declines, and the first
//     Values request, materializes the query once and caches a Reference.
//     From then on every request is answered by that cached Reference.
//
// Thread-safety: Reference is immutable after construction. Loadable is
// safe for concurrent use; the load transition is a single critical section
// and all callers observe the same cached Reference afterwards.
package evaluator

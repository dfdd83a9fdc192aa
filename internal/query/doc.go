// Package query provides the deferred query model: an immutable chain of
// Operations bound to a Source.
//
// Building a Query never executes anything. Predicates, key functions and
// projectors are stored unevaluated inside Operation values and are only
// called when the chain is applied to a concrete sequence, which happens
// when a terminal request is dispatched (see package evaluator).
//
// SEALED INTERFACES:
//
// Operation is a sealed interface using the marker method pattern. Only types
// in this package implement it, which keeps type switches in Apply and in
// push-down back ends exhaustive:
//
//	switch op := op.(type) {
//	case Filter:
//	    // keep matching elements
//	case OrderBy:
//	    // stable sort
//	...
//	}
//
// DECLARATIVE FRAGMENT:
//
// Key and Predicate are open interfaces so callers can pass closures
// (KeyFunc, PredicateFunc). Field, Comparison and And are declarative: a
// back end can read the field name and operands instead of calling Go code.
// Validate reports whether a Query stays inside that fragment.
package query

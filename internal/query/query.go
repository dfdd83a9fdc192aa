package query

import "slices"

// Query is an immutable chain of Operations bound to a Source.
//
// Every builder method returns a new Query; the receiver is never modified and
// no two queries share a mutable operation tail.
type Query struct {
	source     Source
	operations []Operation
}

// New creates an empty Query over src.
func New(src Source) *Query {
	return &Query{source: src}
}

// From creates a Query over an in-memory copy of values.
func From(values ...any) *Query {
	return New(NewSliceSource(values...))
}

// Source returns the originating source.
func (q *Query) Source() Source {
	return q.source
}

// Operations returns a copy of the operation chain.
func (q *Query) Operations() []Operation {
	return slices.Clone(q.operations)
}

// Len returns the number of operations in the chain.
func (q *Query) Len() int {
	return len(q.operations)
}

// With returns a new Query with op appended.
func (q *Query) With(op Operation) *Query {
	ops := make([]Operation, len(q.operations), len(q.operations)+1)
	copy(ops, q.operations)
	return &Query{
		source:     q.source,
		operations: append(ops, op),
	}
}

// Where keeps the elements satisfying p.
func (q *Query) Where(p Predicate) *Query {
	return q.With(Filter{Predicate: p})
}

// WhereFunc keeps the elements for which fn returns true.
func (q *Query) WhereFunc(fn func(v any) (bool, error)) *Query {
	return q.Where(PredicateFunc(fn))
}

// OrderBy sorts ascending by k.
func (q *Query) OrderBy(k Key) *Query {
	return q.With(OrderBy{Key: k, Ascending: true})
}

// OrderByDescending sorts descending by k.
func (q *Query) OrderByDescending(k Key) *Query {
	return q.With(OrderBy{Key: k, Ascending: false})
}

// Skip drops the first n elements.
func (q *Query) Skip(n uint) *Query {
	return q.With(Skip{Amount: n})
}

// Take keeps at most n elements; pass Unbounded to remove the limit.
func (q *Query) Take(n int) *Query {
	return q.With(Take{Amount: n})
}

// Slice skips start elements then keeps at most amount.
func (q *Query) Slice(start uint, amount int) *Query {
	return q.With(Slice{Start: start, Amount: amount})
}

// IndexBy keeps the last element per key, at the key's first position.
func (q *Query) IndexBy(k Key) *Query {
	return q.With(IndexBy{Key: k})
}

// GroupBy groups elements by k.
func (q *Query) GroupBy(k Key) *Query {
	return q.With(GroupBy{Key: k})
}

// Unique removes duplicates, keeping first occurrences.
func (q *Query) Unique() *Query {
	return q.With(Unique{})
}

// Select projects every element.
func (q *Query) Select(k Key) *Query {
	return q.With(Select{Projector: k})
}

// SelectFunc projects every element through fn.
func (q *Query) SelectFunc(fn func(v any) (any, error)) *Query {
	return q.Select(KeyFunc(fn))
}

// SelectMany projects every element to a sequence and flattens.
func (q *Query) SelectMany(k Key) *Query {
	return q.With(SelectMany{Projector: k})
}

// Union appends other and removes duplicates.
func (q *Query) Union(other *Query) *Query {
	return q.With(SetCombine{Kind: Union, Other: other})
}

// Append concatenates other.
func (q *Query) Append(other *Query) *Query {
	return q.With(SetCombine{Kind: Append, Other: other})
}

// Intersect keeps elements also present in other.
func (q *Query) Intersect(other *Query) *Query {
	return q.With(SetCombine{Kind: Intersect, Other: other})
}

// Except removes elements present in other.
func (q *Query) Except(other *Query) *Query {
	return q.With(SetCombine{Kind: Except, Other: other})
}

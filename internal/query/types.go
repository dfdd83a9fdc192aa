package query

// Operation is one non-terminal step of a query chain.
//
// This is a sealed interface - only types in this package implement it.
// Operation values are immutable once constructed.
type Operation interface {
	operationNode() // Marker method - seals interface to this package
}

// Unbounded removes the limit of Take and Slice. Any negative amount is
// treated as unbounded.
const Unbounded = -1

// Filter keeps the elements satisfying Predicate, preserving their order.
type Filter struct {
	Predicate Predicate
}

func (Filter) operationNode() {}

// OrderBy stable-sorts elements by Key.
//
// Consecutive OrderBy operations compose like a stable multi-pass sort: the
// last OrderBy is the primary key and earlier ones break its ties.
type OrderBy struct {
	Key       Key
	Ascending bool
}

func (OrderBy) operationNode() {}

// Skip drops the first Amount elements.
type Skip struct {
	Amount uint
}

func (Skip) operationNode() {}

// Take keeps at most Amount elements. A negative Amount keeps everything.
type Take struct {
	Amount int
}

func (Take) operationNode() {}

// Slice is Skip(Start) followed by Take(Amount).
type Slice struct {
	Start  uint
	Amount int
}

func (Slice) operationNode() {}

// IndexBy keeps one element per key: the last element carrying the key,
// placed where the key first occurred.
type IndexBy struct {
	Key Key
}

func (IndexBy) operationNode() {}

// GroupBy collects elements into *Group values, in first-occurrence key order.
type GroupBy struct {
	Key Key
}

func (GroupBy) operationNode() {}

// Unique keeps the first element of every equality class.
type Unique struct{}

func (Unique) operationNode() {}

// Select maps every element through Projector.
type Select struct {
	Projector Key
}

func (Select) operationNode() {}

// SelectMany maps every element to a sequence and flattens the results.
type SelectMany struct {
	Projector Key
}

func (SelectMany) operationNode() {}

// SetKind selects the behavior of SetCombine.
type SetKind uint8

const (
	// Union appends Other and removes duplicates from the whole result.
	Union SetKind = iota
	// Append concatenates Other, keeping duplicates.
	Append
	// Intersect keeps the elements that also occur in Other.
	Intersect
	// Except keeps the elements that do not occur in Other.
	Except
)

var setKindNames = map[SetKind]string{
	Union:     "union",
	Append:    "append",
	Intersect: "intersect",
	Except:    "except",
}

func (k SetKind) String() string {
	if s, ok := setKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// SetCombine combines the current sequence with the fully materialized
// result of Other.
type SetCombine struct {
	Kind  SetKind
	Other *Query
}

func (SetCombine) operationNode() {}

// Group is the element produced by GroupBy.
type Group struct {
	Key    any
	Values []any
}

// Elements returns the grouped values, so SelectMany can flatten groups.
func (g *Group) Elements() []any {
	return g.Values
}

// Count returns the number of grouped values.
func (g *Group) Count() int {
	return len(g.Values)
}

// CanonicalValue gives groups a canonical form for equality.
func (g *Group) CanonicalValue() any {
	return map[string]any{
		"key":    g.Key,
		"values": g.Values,
	}
}

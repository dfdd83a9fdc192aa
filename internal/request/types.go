package request

import (
	"fmt"

	"github.com/mengzui/Pinq/internal/query"
)

// Request is a terminal, result-producing query step.
type Request interface {
	Kind() Kind
	requestNode() // Marker method - seals interface to this package
}

// Kind names a Request variant.
type Kind string

const (
	KindValues    Kind = "values"
	KindFirst     Kind = "first"
	KindLast      Kind = "last"
	KindCount     Kind = "count"
	KindExists    Kind = "exists"
	KindContains  Kind = "contains"
	KindAggregate Kind = "aggregate"
	KindMaximum   Kind = "maximum"
	KindMinimum   Kind = "minimum"
	KindSum       Kind = "sum"
	KindAverage   Kind = "average"
	KindAll       Kind = "all"
	KindAny       Kind = "any"
	KindImplode   Kind = "implode"
)

// Kinds lists every variant in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindValues, KindFirst, KindLast, KindCount, KindExists, KindContains,
		KindAggregate, KindMaximum, KindMinimum, KindSum, KindAverage,
		KindAll, KindAny, KindImplode,
	}
}

// ParseKind resolves a variant name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// Values materializes the whole sequence.
type Values struct{}

// First returns the first element.
type First struct{}

// Last returns the last element.
type Last struct{}

// Count returns the number of elements.
type Count struct{}

// Exists reports whether there is at least one element.
type Exists struct{}

// Contains reports whether some element equals Value.
type Contains struct {
	Value any
}

// Aggregate left-folds the sequence starting from Seed.
type Aggregate struct {
	Seed    any
	Combine query.Combiner
}

// Maximum returns the element whose key is largest.
// A nil Key compares elements directly.
type Maximum struct {
	Key query.Key
}

// Minimum returns the element whose key is smallest.
type Minimum struct {
	Key query.Key
}

// Sum adds the keys of all elements.
type Sum struct {
	Key query.Key
}

// Average returns the arithmetic mean of the keys as float64.
type Average struct {
	Key query.Key
}

// All reports whether every element satisfies Predicate.
type All struct {
	Predicate query.Predicate
}

// Any reports whether some element satisfies Predicate.
type Any struct {
	Predicate query.Predicate
}

// Implode joins the keys of all elements with Separator.
type Implode struct {
	Separator string
	Key       query.Key
}

func (Values) Kind() Kind    { return KindValues }
func (First) Kind() Kind     { return KindFirst }
func (Last) Kind() Kind      { return KindLast }
func (Count) Kind() Kind     { return KindCount }
func (Exists) Kind() Kind    { return KindExists }
func (Contains) Kind() Kind  { return KindContains }
func (Aggregate) Kind() Kind { return KindAggregate }
func (Maximum) Kind() Kind   { return KindMaximum }
func (Minimum) Kind() Kind   { return KindMinimum }
func (Sum) Kind() Kind       { return KindSum }
func (Average) Kind() Kind   { return KindAverage }
func (All) Kind() Kind       { return KindAll }
func (Any) Kind() Kind       { return KindAny }
func (Implode) Kind() Kind   { return KindImplode }

func (Values) requestNode()    {}
func (First) requestNode()     {}
func (Last) requestNode()      {}
func (Count) requestNode()     {}
func (Exists) requestNode()    {}
func (Contains) requestNode()  {}
func (Aggregate) requestNode() {}
func (Maximum) requestNode()   {}
func (Minimum) requestNode()   {}
func (Sum) requestNode()       {}
func (Average) requestNode()   {}
func (All) requestNode()       {}
func (Any) requestNode()       {}
func (Implode) requestNode()   {}

package query

import (
	"errors"
	"fmt"

	"github.com/mengzui/Pinq/internal/value"
)

// ErrFieldNotFound is returned by Field when the element has no such column.
var ErrFieldNotFound = errors.New("field not found")

// Key maps an element to a derived value (sort key, group key, projection).
type Key interface {
	Apply(v any) (any, error)
}

// KeyFunc adapts a closure to Key.
type KeyFunc func(v any) (any, error)

// Apply calls f.
func (f KeyFunc) Apply(v any) (any, error) { return f(v) }

// Field reads a named column from a Row element.
type Field string

// Apply returns the column value, or ErrFieldNotFound.
func (f Field) Apply(v any) (any, error) {
	row, ok := v.(value.Row)
	if !ok {
		return nil, fmt.Errorf("%w: %s (element is %T, not a row)", ErrFieldNotFound, string(f), v)
	}
	col, ok := row[string(f)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, string(f))
	}
	return value.Normalize(col), nil
}

type identity struct{}

func (identity) Apply(v any) (any, error) { return v, nil }

// Identity returns each element unchanged.
var Identity Key = identity{}

// IsIdentity reports whether k is nil or Identity.
func IsIdentity(k Key) bool {
	if k == nil {
		return true
	}
	_, ok := k.(identity)
	return ok
}

// ApplyKey applies k, treating a nil key as Identity.
func ApplyKey(k Key, v any) (any, error) {
	if k == nil {
		return v, nil
	}
	return k.Apply(v)
}

// Predicate decides whether an element is kept.
type Predicate interface {
	Test(v any) (bool, error)
}

// PredicateFunc adapts a closure to Predicate.
type PredicateFunc func(v any) (bool, error)

// Test calls f.
func (f PredicateFunc) Test(v any) (bool, error) { return f(v) }

// Combiner folds an element into an accumulator (Aggregate requests).
type Combiner func(acc, v any) (any, error)

// OpType is a comparison operator.
type OpType uint8

const (
	OpEq OpType = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opSymbols = map[OpType]string{
	OpEq: "=",
	OpNe: "!=",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// String returns the SQL symbol of the operator.
func (o OpType) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("OpType(%d)", uint8(o))
}

// Comparison compares a row column with a literal.
//
// Follows SQL three-valued logic: when the column or the literal is nil the
// comparison is never true, for every operator.
type Comparison struct {
	Field string
	Op    OpType
	Value any
}

// Test evaluates the comparison against a Row element. Text on both sides
// is compared in NFC.
func (c Comparison) Test(v any) (bool, error) {
	col, err := Field(c.Field).Apply(v)
	if err != nil {
		return false, err
	}
	col = value.NormalizeText(col)
	lit := value.NormalizeText(c.Value)
	if col == nil || lit == nil {
		return false, nil
	}
	if c.Op == OpEq || c.Op == OpNe {
		eq := value.Equal(col, lit)
		return eq == (c.Op == OpEq), nil
	}
	cmp, err := value.Compare(col, lit)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator: %s", c.Op)
}

func Eq(field string, v any) Comparison { return Comparison{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Comparison { return Comparison{Field: field, Op: OpNe, Value: v} }
func Lt(field string, v any) Comparison { return Comparison{Field: field, Op: OpLt, Value: v} }
func Le(field string, v any) Comparison { return Comparison{Field: field, Op: OpLe, Value: v} }
func Gt(field string, v any) Comparison { return Comparison{Field: field, Op: OpGt, Value: v} }
func Ge(field string, v any) Comparison { return Comparison{Field: field, Op: OpGe, Value: v} }

// And holds when every predicate holds. An empty And is always true.
type And struct {
	Predicates []Predicate
}

// Test evaluates predicates left to right and stops at the first false.
func (a And) Test(v any) (bool, error) {
	for _, p := range a.Predicates {
		ok, err := p.Test(v)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// AllOf builds an And predicate.
func AllOf(preds ...Predicate) And {
	return And{Predicates: preds}
}

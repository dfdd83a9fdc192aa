package query

import (
	"fmt"

	"github.com/mengzui/Pinq/internal/value"
)

// ValidationResult contains the portability analysis of a query.
//
// A portable query uses only declarative keys and predicates (Field,
// Comparison, And) and operations a declarative back end can express. Queries
// outside the fragment still evaluate correctly in memory; back ends decline
// to answer them directly.
type ValidationResult struct {
	// IsPortable is true when no warnings were raised.
	IsPortable bool

	// Warnings lists every non-portable feature found.
	Warnings []string
}

// Validate checks whether q stays inside the declarative fragment.
//
// Validate is a pure function with no side effects; it never calls user code.
func Validate(q *Query) ValidationResult {
	v := &validator{warnings: []string{}}
	if q == nil {
		v.addWarning("nil query")
	} else {
		for i, op := range q.operations {
			v.validateOperation(fmt.Sprintf("operation %d", i), op)
		}
	}
	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// ValidatePredicate applies the predicate rules of Validate to p alone.
func ValidatePredicate(p Predicate) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validatePredicate("predicate", p)
	return ValidationResult{IsPortable: len(v.warnings) == 0, Warnings: v.warnings}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateOperation(where string, op Operation) {
	switch o := op.(type) {
	case Filter:
		v.validatePredicate(where, o.Predicate)
	case OrderBy:
		v.validateKey(where, "order key", o.Key)
	case Skip, Take, Slice:
		// Limits are always portable.
	case IndexBy, GroupBy, Unique, Select, SelectMany, SetCombine:
		v.addWarning("%s: %T has no declarative form", where, op)
	default:
		v.addWarning("%s: unknown operation type %T", where, op)
	}
}

func (v *validator) validateKey(where string, what string, k Key) {
	if _, ok := k.(Field); !ok {
		v.addWarning("%s: %s %T is not a field reference", where, what, k)
	}
}

func (v *validator) validatePredicate(where string, p Predicate) {
	switch pred := p.(type) {
	case nil:
		// A nil predicate keeps everything.
	case Comparison:
		v.validateComparison(where, pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(where, sub)
		}
	default:
		v.addWarning("%s: predicate %T is opaque", where, p)
	}
}

func (v *validator) validateComparison(where string, c Comparison) {
	if _, ok := opSymbols[c.Op]; !ok {
		v.addWarning("%s: unknown operator %d on field %q", where, uint8(c.Op), c.Field)
	}
	switch c.Value.(type) {
	case nil:
		v.addWarning("%s: field %q compared to nil", where, c.Field)
		return
	case bool:
		v.addWarning("%s: field %q compared to a bool", where, c.Field)
		return
	}
	switch value.Normalize(c.Value).(type) {
	case int64, float64, string, []byte:
	default:
		v.addWarning("%s: field %q compared to non-scalar %T", where, c.Field, c.Value)
	}
}

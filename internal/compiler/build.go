package compiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

// IdentityKey is the key spelling that selects the element itself.
const IdentityKey = "."

var documentFields = []string{"name", "from", "ops", "request"}

func compileDocument(m map[string]any) (*Document, error) {
	if err := checkFields(m, "document", documentFields...); err != nil {
		return nil, err
	}

	doc := &Document{}
	if name, ok := m["name"]; ok {
		s, ok := name.(string)
		if !ok {
			return nil, newError(ErrInvalidValue, "name", "expected a string, got %T", name)
		}
		doc.Name = s
	}

	qs, err := compileQuery(m, "")
	if err != nil {
		return nil, err
	}
	doc.Query = *qs

	raw, ok := m["request"]
	if !ok {
		return nil, newError(ErrMissingField, "request", "request is required")
	}
	doc.Request, err = compileRequest(raw, "request")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// compileQuery reads "from" and "ops" out of m. prefix locates nested
// set operands in error messages.
func compileQuery(m map[string]any, prefix string) (*QuerySpec, error) {
	fromField := prefix + "from"
	raw, ok := m["from"]
	if !ok {
		return nil, newError(ErrMissingField, fromField, "from is required")
	}
	ref, err := compileSource(raw, fromField)
	if err != nil {
		return nil, err
	}
	qs := &QuerySpec{From: ref}

	opsRaw, ok := m["ops"]
	if !ok || opsRaw == nil {
		return qs, nil
	}
	list, ok := opsRaw.([]any)
	if !ok {
		return nil, newError(ErrInvalidValue, prefix+"ops", "expected a list, got %T", opsRaw)
	}
	for i, e := range list {
		op, err := compileOp(e, fmt.Sprintf("%sops[%d]", prefix, i))
		if err != nil {
			return nil, err
		}
		qs.ops = append(qs.ops, op)
	}
	return qs, nil
}

func compileSource(raw any, field string) (SourceRef, error) {
	switch x := raw.(type) {
	case []any:
		return SourceRef{Values: value.NormalizeAll(x), Inline: true}, nil
	case map[string]any:
		if err := checkFields(x, field, "table", "bucket", "values"); err != nil {
			return SourceRef{}, err
		}
		if len(x) != 1 {
			return SourceRef{}, newError(ErrInvalidValue, field, "expected exactly one of table, bucket or values")
		}
		if v, ok := x["values"]; ok {
			list, ok := v.([]any)
			if !ok && v != nil {
				return SourceRef{}, newError(ErrInvalidValue, field+".values", "expected a list, got %T", v)
			}
			return SourceRef{Values: value.NormalizeAll(list), Inline: true}, nil
		}
		if v, ok := x["table"]; ok {
			name, err := nonEmptyString(v, field+".table")
			return SourceRef{Table: name}, err
		}
		name, err := nonEmptyString(x["bucket"], field+".bucket")
		return SourceRef{Bucket: name}, err
	default:
		return SourceRef{}, newError(ErrInvalidValue, field, "expected a mapping or a list, got %T", raw)
	}
}

var setOperations = map[string]query.SetKind{
	"union":     query.Union,
	"append":    query.Append,
	"intersect": query.Intersect,
	"except":    query.Except,
}

func compileOp(raw any, field string) (opSpec, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return opSpec{}, newError(ErrInvalidValue, field, "expected a mapping with a single operation")
	}
	var name string
	var arg any
	for k, v := range m {
		name, arg = k, v
	}
	at := field + "." + name

	if kind, ok := setOperations[name]; ok {
		operand, ok := arg.(map[string]any)
		if !ok {
			return opSpec{}, newError(ErrInvalidValue, at, "expected a query mapping, got %T", arg)
		}
		if err := checkFields(operand, at, "from", "ops"); err != nil {
			return opSpec{}, err
		}
		qs, err := compileQuery(operand, at+".")
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{set: kind, operand: qs}, nil
	}

	switch name {
	case "where":
		p, err := compilePredicate(arg, at)
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{op: query.Filter{Predicate: p}}, nil
	case "orderBy", "orderByDescending":
		k, err := compileKey(arg, at)
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{op: query.OrderBy{Key: k, Ascending: name == "orderBy"}}, nil
	case "skip":
		n, err := nonNegativeInt(arg, at)
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{op: query.Skip{Amount: n}}, nil
	case "take":
		n, err := amount(arg, at)
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{op: query.Take{Amount: n}}, nil
	case "slice":
		s, ok := arg.(map[string]any)
		if !ok {
			return opSpec{}, newError(ErrInvalidValue, at, "expected {start, amount}, got %T", arg)
		}
		if err := checkFields(s, at, "start", "amount"); err != nil {
			return opSpec{}, err
		}
		start, err := nonNegativeInt(s["start"], at+".start")
		if err != nil {
			return opSpec{}, err
		}
		n, err := amount(s["amount"], at+".amount")
		if err != nil {
			return opSpec{}, err
		}
		return opSpec{op: query.Slice{Start: start, Amount: n}}, nil
	case "indexBy", "groupBy", "select", "selectMany":
		k, err := compileKey(arg, at)
		if err != nil {
			return opSpec{}, err
		}
		switch name {
		case "indexBy":
			return opSpec{op: query.IndexBy{Key: k}}, nil
		case "groupBy":
			return opSpec{op: query.GroupBy{Key: k}}, nil
		case "select":
			return opSpec{op: query.Select{Projector: k}}, nil
		default:
			return opSpec{op: query.SelectMany{Projector: k}}, nil
		}
	case "unique":
		return opSpec{op: query.Unique{}}, nil
	default:
		return opSpec{}, newError(ErrUnknownOperation, field, "unknown operation %q", name)
	}
}

func compileKey(raw any, field string) (query.Key, error) {
	if raw == nil {
		return query.Identity, nil
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return nil, newError(ErrInvalidValue, field, "expected a field name or %q, got %v", IdentityKey, raw)
	}
	if s == IdentityKey {
		return query.Identity, nil
	}
	return query.Field(s), nil
}

var operators = map[string]query.OpType{
	"=":  query.OpEq,
	"==": query.OpEq,
	"!=": query.OpNe,
	"<":  query.OpLt,
	"<=": query.OpLe,
	">":  query.OpGt,
	">=": query.OpGe,
}

func compilePredicate(raw any, field string) (query.Predicate, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, newError(ErrInvalidValue, field, "expected a predicate mapping, got %T", raw)
	}

	if all, ok := m["all"]; ok {
		if err := checkFields(m, field, "all"); err != nil {
			return nil, err
		}
		list, ok := all.([]any)
		if !ok {
			return nil, newError(ErrInvalidValue, field+".all", "expected a list, got %T", all)
		}
		preds := make([]query.Predicate, 0, len(list))
		for i, e := range list {
			p, err := compilePredicate(e, fmt.Sprintf("%s.all[%d]", field, i))
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return query.AllOf(preds...), nil
	}

	if err := checkFields(m, field, "field", "op", "value"); err != nil {
		return nil, err
	}
	name, err := nonEmptyString(m["field"], field+".field")
	if err != nil {
		return nil, err
	}
	sym, ok := m["op"].(string)
	if !ok {
		return nil, newError(ErrMissingField, field+".op", "op is required")
	}
	op, ok := operators[sym]
	if !ok {
		return nil, newError(ErrUnknownOperator, field+".op", "unknown operator %q", sym)
	}
	lit, ok := m["value"]
	if !ok {
		return nil, newError(ErrMissingField, field+".value", "value is required")
	}
	return query.Comparison{Field: name, Op: op, Value: value.Normalize(lit)}, nil
}

// requestFields lists the keys each request kind accepts besides "kind".
var requestFields = map[request.Kind][]string{
	request.KindValues:    nil,
	request.KindFirst:     nil,
	request.KindLast:      nil,
	request.KindCount:     nil,
	request.KindExists:    nil,
	request.KindContains:  {"value"},
	request.KindAggregate: {"seed", "combine"},
	request.KindMaximum:   {"key"},
	request.KindMinimum:   {"key"},
	request.KindSum:       {"key"},
	request.KindAverage:   {"key"},
	request.KindAll:       {"where"},
	request.KindAny:       {"where"},
	request.KindImplode:   {"separator", "key"},
}

// ParseRequest compiles a request given as a kind name or a mapping.
func ParseRequest(raw any) (request.Request, error) {
	r, err := plain(raw, "request")
	if err != nil {
		return nil, err
	}
	return compileRequest(r, "request")
}

func compileRequest(raw any, field string) (request.Request, error) {
	var m map[string]any
	switch x := raw.(type) {
	case string:
		m = map[string]any{"kind": x}
	case map[string]any:
		m = x
	default:
		return nil, newError(ErrInvalidValue, field, "expected a kind or a mapping, got %T", raw)
	}

	ks, ok := m["kind"].(string)
	if !ok {
		return nil, newError(ErrMissingField, field+".kind", "kind is required")
	}
	kind, err := request.ParseKind(ks)
	if err != nil {
		return nil, newError(ErrUnknownRequest, field+".kind", "unknown request kind %q", ks)
	}
	if err := checkFields(m, field, append([]string{"kind"}, requestFields[kind]...)...); err != nil {
		return nil, err
	}

	key := func() (query.Key, error) {
		if _, ok := m["key"]; !ok {
			return nil, nil
		}
		return compileKey(m["key"], field+".key")
	}
	where := func() (query.Predicate, error) {
		if p, ok := m["where"]; ok && p != nil {
			return compilePredicate(p, field+".where")
		}
		return nil, nil
	}

	switch kind {
	case request.KindValues:
		return request.Values{}, nil
	case request.KindFirst:
		return request.First{}, nil
	case request.KindLast:
		return request.Last{}, nil
	case request.KindCount:
		return request.Count{}, nil
	case request.KindExists:
		return request.Exists{}, nil
	case request.KindContains:
		v, ok := m["value"]
		if !ok {
			return nil, newError(ErrMissingField, field+".value", "value is required")
		}
		return request.Contains{Value: value.Normalize(v)}, nil
	case request.KindAggregate:
		name, ok := m["combine"].(string)
		if !ok {
			return nil, newError(ErrMissingField, field+".combine", "combine is required")
		}
		fn, ok := Combiners[name]
		if !ok {
			return nil, newError(ErrInvalidValue, field+".combine", "unknown combiner %q, expected one of %v", name, combinerNames())
		}
		return request.Aggregate{Seed: value.Normalize(m["seed"]), Combine: fn}, nil
	case request.KindMaximum, request.KindMinimum, request.KindSum, request.KindAverage:
		k, err := key()
		if err != nil {
			return nil, err
		}
		switch kind {
		case request.KindMaximum:
			return request.Maximum{Key: k}, nil
		case request.KindMinimum:
			return request.Minimum{Key: k}, nil
		case request.KindSum:
			return request.Sum{Key: k}, nil
		default:
			return request.Average{Key: k}, nil
		}
	case request.KindAll, request.KindAny:
		p, err := where()
		if err != nil {
			return nil, err
		}
		if kind == request.KindAll {
			return request.All{Predicate: p}, nil
		}
		return request.Any{Predicate: p}, nil
	case request.KindImplode:
		sep := ""
		if s, ok := m["separator"]; ok && s != nil {
			if sep, ok = s.(string); !ok {
				return nil, newError(ErrInvalidValue, field+".separator", "expected a string, got %T", s)
			}
		}
		k, err := key()
		if err != nil {
			return nil, err
		}
		return request.Implode{Separator: sep, Key: k}, nil
	}
	return nil, newError(ErrUnknownRequest, field+".kind", "unknown request kind %q", ks)
}

// Combiners are the named fold functions available to aggregate requests.
var Combiners = map[string]query.Combiner{
	"add": func(acc, v any) (any, error) {
		return value.Sum([]any{acc, v})
	},
	"concat": func(acc, v any) (any, error) {
		return value.Format(acc) + value.Format(v), nil
	},
	"max": func(acc, v any) (any, error) {
		c, err := value.Compare(v, acc)
		if err != nil {
			return nil, err
		}
		if c > 0 {
			return v, nil
		}
		return acc, nil
	},
	"min": func(acc, v any) (any, error) {
		if acc == nil {
			return v, nil
		}
		c, err := value.Compare(v, acc)
		if err != nil {
			return nil, err
		}
		if c < 0 {
			return v, nil
		}
		return acc, nil
	},
}

func combinerNames() []string {
	names := make([]string, 0, len(Combiners))
	for n := range Combiners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkFields(m map[string]any, field string, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	var unknown []string
	for k := range m {
		if !ok[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return newError(ErrUnknownField, field, "unknown key %q", unknown[0])
}

func nonEmptyString(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", newError(ErrInvalidValue, field, "expected a non-empty string, got %v", v)
	}
	return s, nil
}

func integer(v any, field string) (int64, error) {
	switch n := value.Normalize(v).(type) {
	case int64:
		return n, nil
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
	}
	return 0, newError(ErrInvalidValue, field, "expected an integer, got %v", v)
}

func nonNegativeInt(v any, field string) (uint, error) {
	if v == nil {
		return 0, nil
	}
	n, err := integer(v, field)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newError(ErrInvalidValue, field, "must not be negative, got %d", n)
	}
	return uint(n), nil
}

// amount reads a Take or Slice limit. Null and negative values are
// unbounded.
func amount(v any, field string) (int, error) {
	if v == nil {
		return query.Unbounded, nil
	}
	n, err := integer(v, field)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return query.Unbounded, nil
	}
	return int(n), nil
}

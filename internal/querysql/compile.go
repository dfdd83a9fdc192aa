package querysql

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

// ErrNotPortable is returned when a query or request has no SQL form.
// Callers treat it as "decline" and fall back to materialization.
var ErrNotPortable = errors.New("not portable to SQL")

// PositionColumn is the synthetic column holding an element's position in
// the ordered query result. Tables must not define it.
const PositionColumn = "__pos"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a table or column name.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name) && name != PositionColumn
}

// QuoteIdentifier quotes a validated identifier.
func QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Shape describes how the single result row of a Statement is read.
type Shape uint8

const (
	// ShapeScalar is one column: an integer count or a 0/1 boolean.
	ShapeScalar Shape = iota

	// ShapeRow is zero or one row with the table's columns.
	ShapeRow

	// ShapeSum is (sum, count, non-integer count). A non-zero third column
	// means SQL arithmetic would diverge from in-memory folding.
	ShapeSum
)

// Statement is a compiled, parameterized SQL statement.
type Statement struct {
	SQL    string
	Params []any
	Shape  Shape
}

// SQLCompiler compiles queries over one table to parameterized SQL for SQLite.
//
// Only queries shaped (Filter|OrderBy)* followed by (Skip|Take|Slice)* are
// compiled. Element positions come from ROW_NUMBER() over the query order
// with rowid as the final tiebreaker, which reproduces a stable sort over
// rows enumerated in rowid order.
//
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	table   string
	columns []string
}

// NewSQLCompiler creates a compiler for table with the given columns.
func NewSQLCompiler(table string, columns []string) *SQLCompiler {
	return &SQLCompiler{table: table, columns: slices.Clone(columns)}
}

// window is a position range: elements with offset < pos <= offset+limit.
type window struct {
	offset uint
	limit  int // query.Unbounded for no upper bound
}

// skip saturates the offset at math.MaxUint.
func (w window) skip(n uint) window {
	if w.offset > math.MaxUint-n {
		w.offset = math.MaxUint
	} else {
		w.offset += n
	}
	if w.limit >= 0 {
		if n >= uint(w.limit) {
			w.limit = 0
		} else {
			w.limit -= int(n)
		}
	}
	return w
}

// representable reports whether both window bounds fit an SQLite integer.
func (w window) representable() bool {
	if uint64(w.offset) > math.MaxInt64 {
		return false
	}
	return w.limit < 0 || uint64(w.offset)+uint64(w.limit) <= math.MaxInt64
}

func (w window) take(n int) window {
	if n < 0 {
		return w
	}
	if w.limit < 0 || n < w.limit {
		w.limit = n
	}
	return w
}

// base is the compiled query part shared by every request.
type base struct {
	sql    string
	params []any
	where  []string
	wparam []any
}

// Compile converts a query and a request into one SQL statement.
// Returns an error wrapping ErrNotPortable when either has no SQL form.
func (c *SQLCompiler) Compile(q *query.Query, r request.Request) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}
	if err := c.checkIdentifiers(); err != nil {
		return Statement{}, err
	}

	b, err := c.compileBase(q)
	if err != nil {
		return Statement{}, err
	}

	switch req := r.(type) {
	case request.Count:
		return b.selectFrom("COUNT(*)", ShapeScalar, "", nil), nil
	case request.Exists:
		return b.exists("", nil), nil
	case request.Any:
		return c.compileAny(b, req.Predicate, false)
	case request.All:
		return c.compileAny(b, req.Predicate, true)
	case request.First:
		return b.row(c.columnList(), PositionColumn+" ASC"), nil
	case request.Last:
		return b.row(c.columnList(), PositionColumn+" DESC"), nil
	case request.Maximum:
		return c.compileExtreme(b, req.Key, "DESC")
	case request.Minimum:
		return c.compileExtreme(b, req.Key, "ASC")
	case request.Sum:
		return c.compileSum(b, req.Key)
	case request.Average:
		return c.compileSum(b, req.Key)
	case nil:
		return Statement{}, fmt.Errorf("cannot compile nil request")
	default:
		return Statement{}, fmt.Errorf("%w: %s request", ErrNotPortable, r.Kind())
	}
}

func (c *SQLCompiler) checkIdentifiers() error {
	if !ValidIdentifier(c.table) {
		return fmt.Errorf("invalid table name %q", c.table)
	}
	if len(c.columns) == 0 {
		return fmt.Errorf("table %q has no columns", c.table)
	}
	for _, col := range c.columns {
		if !ValidIdentifier(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
	}
	return nil
}

// compileBase builds the positioned subquery and the window conditions.
func (c *SQLCompiler) compileBase(q *query.Query) (*base, error) {
	var (
		filters  []string
		params   []any
		orderBy  []string
		win      = window{limit: query.Unbounded}
		limiting bool
	)

	for i, op := range q.Operations() {
		switch o := op.(type) {
		case query.Filter:
			if limiting {
				return nil, fmt.Errorf("%w: operation %d: filter after a limit", ErrNotPortable, i)
			}
			if o.Predicate == nil {
				continue
			}
			sql, ps, err := c.compilePredicate(o.Predicate)
			if err != nil {
				return nil, fmt.Errorf("operation %d: %w", i, err)
			}
			filters = append(filters, sql)
			params = append(params, ps...)
		case query.OrderBy:
			if limiting {
				return nil, fmt.Errorf("%w: operation %d: order after a limit", ErrNotPortable, i)
			}
			col, err := c.fieldColumn(o.Key)
			if err != nil {
				return nil, fmt.Errorf("operation %d: %w", i, err)
			}
			dir := "ASC"
			if !o.Ascending {
				dir = "DESC"
			}
			orderBy = append(orderBy, col+" "+dir)
		case query.Skip:
			limiting = true
			win = win.skip(o.Amount)
		case query.Take:
			limiting = true
			win = win.take(o.Amount)
		case query.Slice:
			limiting = true
			win = win.skip(o.Start).take(o.Amount)
		default:
			return nil, fmt.Errorf("%w: operation %d: %T", ErrNotPortable, i, op)
		}
	}

	if !win.representable() {
		return nil, fmt.Errorf("%w: window bounds exceed the integer range", ErrNotPortable)
	}

	// The last OrderBy is the primary key, earlier ones break its ties.
	slices.Reverse(orderBy)
	orderBy = append(orderBy, "rowid ASC")

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, ROW_NUMBER() OVER (ORDER BY %s) AS %s FROM %s",
		c.columnList(), strings.Join(orderBy, ", "), PositionColumn, QuoteIdentifier(c.table))
	if len(filters) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(filters, " AND "))
	}

	b := &base{sql: sb.String(), params: params}
	if win.offset > 0 {
		b.where = append(b.where, PositionColumn+" > ?")
		b.wparam = append(b.wparam, int64(win.offset))
	}
	if win.limit >= 0 {
		b.where = append(b.where, PositionColumn+" <= ?")
		b.wparam = append(b.wparam, int64(win.offset)+int64(win.limit))
	}
	return b, nil
}

// from returns the FROM clause over the positioned subquery with the
// window conditions plus extra, and the matching parameters.
func (b *base) from(extra string, extraParams []any) (string, []any) {
	where := slices.Clone(b.where)
	params := append(slices.Clone(b.params), b.wparam...)
	if extra != "" {
		where = append(where, extra)
		params = append(params, extraParams...)
	}
	sql := "FROM (" + b.sql + ")"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql, params
}

func (b *base) selectFrom(cols string, shape Shape, extra string, extraParams []any) Statement {
	from, params := b.from(extra, extraParams)
	return Statement{SQL: "SELECT " + cols + " " + from, Params: params, Shape: shape}
}

func (b *base) exists(extra string, extraParams []any) Statement {
	from, params := b.from(extra, extraParams)
	return Statement{SQL: "SELECT EXISTS (SELECT 1 " + from + ")", Params: params, Shape: ShapeScalar}
}

func (b *base) row(cols string, order string) Statement {
	from, params := b.from("", nil)
	return Statement{
		SQL:    "SELECT " + cols + " " + from + " ORDER BY " + order + " LIMIT 1",
		Params: params,
		Shape:  ShapeRow,
	}
}

// compileAny compiles Any, or All when negate is set.
// All holds when no row fails the predicate, where NULL counts as failing.
func (c *SQLCompiler) compileAny(b *base, p query.Predicate, negate bool) (Statement, error) {
	if p == nil {
		if negate {
			return Statement{SQL: "SELECT 1", Shape: ShapeScalar}, nil
		}
		return b.exists("", nil), nil
	}
	sql, params, err := c.compilePredicate(p)
	if err != nil {
		return Statement{}, err
	}
	if !negate {
		return b.exists("("+sql+")", params), nil
	}
	st := b.exists("NOT COALESCE(("+sql+"), 0)", params)
	st.SQL = "SELECT NOT " + strings.TrimPrefix(st.SQL, "SELECT ")
	return st, nil
}

// compileExtreme picks the first row in key order, ties broken by position.
func (c *SQLCompiler) compileExtreme(b *base, k query.Key, dir string) (Statement, error) {
	col, err := c.fieldColumn(k)
	if err != nil {
		return Statement{}, err
	}
	return b.row(c.columnList(), col+" "+dir+", "+PositionColumn+" ASC"), nil
}

// compileSum selects the integer sum, the row count and the number of
// values that are not integers.
func (c *SQLCompiler) compileSum(b *base, k query.Key) (Statement, error) {
	col, err := c.fieldColumn(k)
	if err != nil {
		return Statement{}, err
	}
	cols := fmt.Sprintf("COALESCE(SUM(%s), 0), COUNT(*), COUNT(*) - COUNT(CASE WHEN typeof(%s) = 'integer' THEN 1 END)", col, col)
	return b.selectFrom(cols, ShapeSum, "", nil), nil
}

func (c *SQLCompiler) columnList() string {
	quoted := make([]string, len(c.columns))
	for i, col := range c.columns {
		quoted[i] = QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

// fieldColumn resolves a key to a quoted column of this table.
func (c *SQLCompiler) fieldColumn(k query.Key) (string, error) {
	f, ok := k.(query.Field)
	if !ok {
		return "", fmt.Errorf("%w: key %T is not a field reference", ErrNotPortable, k)
	}
	if !slices.Contains(c.columns, string(f)) {
		return "", fmt.Errorf("%w: unknown column %q", ErrNotPortable, string(f))
	}
	return QuoteIdentifier(string(f)), nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p query.Predicate) (string, []any, error) {
	if result := query.ValidatePredicate(p); !result.IsPortable {
		return "", nil, fmt.Errorf("%w: %s", ErrNotPortable, strings.Join(result.Warnings, "; "))
	}

	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil // Always true
	case query.Comparison:
		return c.compileComparison(pred)
	case query.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("%w: predicate %T", ErrNotPortable, p)
	}
}

// compileComparison compiles "column op ?". A NULL column never matches,
// as in memory.
func (c *SQLCompiler) compileComparison(cmp query.Comparison) (string, []any, error) {
	col, err := c.fieldColumn(query.Field(cmp.Field))
	if err != nil {
		return "", nil, err
	}
	param, err := toParam(cmp.Value)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ?", col, cmp.Op), []any{param}, nil
}

// compileAnd compiles a conjunction with AND.
func (c *SQLCompiler) compileAnd(and query.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// toParam converts a comparison literal to a SQL parameter.
// Text is NFC-normalized to match how tables store it.
func toParam(v any) (any, error) {
	switch val := value.Normalize(v).(type) {
	case int64, float64, []byte:
		return val, nil
	case string:
		return norm.NFC.String(val), nil
	default:
		return nil, fmt.Errorf("%w: unsupported parameter type %T", ErrNotPortable, v)
	}
}

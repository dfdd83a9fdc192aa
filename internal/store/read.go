package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/querysql"
)

// Tables lists catalog tables in creation order.
//
// Returns an empty slice (not nil) if there are no tables.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM pinq_tables
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// Columns returns a catalog table's columns in declaration order.
func (s *Store) Columns(ctx context.Context, name string) ([]string, error) {
	var registered int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pinq_tables WHERE name = ?", name,
	).Scan(&registered); err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", name, err)
	}
	if registered == 0 || !querysql.ValidIdentifier(name) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", querysql.QuoteIdentifier(name)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", name, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			col       string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &col, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", name, err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info %s: %w", name, err)
	}
	return columns, nil
}

// Table returns a query source over a catalog table.
func (s *Store) Table(ctx context.Context, name string) (*Table, error) {
	columns, err := s.Columns(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Table{
		store:    s,
		name:     name,
		columns:  columns,
		compiler: querysql.NewSQLCompiler(name, columns),
	}, nil
}

// Table is a query source backed by one SQLite table.
//
// Rows are enumerated in rowid order, which is insertion order.
// Table implements the evaluator hooks for Count, Exists, First, Last,
// Maximum, Minimum, Sum, Average, All and Any.
type Table struct {
	store    *Store
	name     string
	columns  []string
	compiler *querysql.SQLCompiler
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Query starts a query over the table.
func (t *Table) Query() *query.Query {
	return query.New(t)
}

// Enumerate returns every row in insertion order.
func (t *Table) Enumerate(ctx context.Context) ([]any, error) {
	quoted := make([]string, len(t.columns))
	for i, col := range t.columns {
		quoted[i] = querysql.QuoteIdentifier(col)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid ASC",
		strings.Join(quoted, ", "), querysql.QuoteIdentifier(t.name))

	rows, err := t.store.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []any{}
	for rows.Next() {
		row, err := scanRow(rows, t.columns)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", t.name, err)
	}
	return out, nil
}

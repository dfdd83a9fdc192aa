package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mengzui/Pinq/internal/querysql"
	"github.com/mengzui/Pinq/internal/value"
)

// CreateTable creates a table with untyped columns and records it in the
// catalog. Column order is preserved. Creating an existing table fails.
func (s *Store) CreateTable(ctx context.Context, name string, columns []string) error {
	if !querysql.ValidIdentifier(name) {
		return fmt.Errorf("create table: invalid table name %q", name)
	}
	if len(columns) == 0 {
		return fmt.Errorf("create table %s: no columns", name)
	}
	seen := make(map[string]bool, len(columns))
	quoted := make([]string, len(columns))
	for i, col := range columns {
		if !querysql.ValidIdentifier(col) {
			return fmt.Errorf("create table %s: invalid column name %q", name, col)
		}
		if seen[col] {
			return fmt.Errorf("create table %s: duplicate column %q", name, col)
		}
		seen[col] = true
		quoted[i] = querysql.QuoteIdentifier(col)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", querysql.QuoteIdentifier(name), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pinq_tables (name, seq)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM pinq_tables))
	`, name); err != nil {
		return fmt.Errorf("create table %s: register: %w", name, err)
	}
	return tx.Commit()
}

// DropTable removes a table and its catalog entry.
func (s *Store) DropTable(ctx context.Context, name string) error {
	if _, err := s.Columns(ctx, name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+querysql.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pinq_tables WHERE name = ?", name); err != nil {
		return fmt.Errorf("drop table %s: unregister: %w", name, err)
	}
	return tx.Commit()
}

// Insert appends rows in order within one transaction.
// Missing columns are stored as NULL; unknown columns are an error.
func (s *Store) Insert(ctx context.Context, name string, rows ...value.Row) error {
	columns, err := s.Columns(ctx, name)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = querysql.QuoteIdentifier(col)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdentifier(name), strings.Join(quoted, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		for col := range row {
			if !slices.Contains(columns, col) {
				return fmt.Errorf("insert into %s: row %d: unknown column %q", name, i, col)
			}
		}
		args := make([]any, len(columns))
		for j, col := range columns {
			args[j], err = toColumnValue(col, row[col])
			if err != nil {
				return fmt.Errorf("insert into %s: row %d: %w", name, i, err)
			}
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert into %s: row %d: %w", name, i, err)
		}
	}
	return tx.Commit()
}

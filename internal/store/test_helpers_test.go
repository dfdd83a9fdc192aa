package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/value"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createOrdersTable creates an "orders" table with a few rows.
func createOrdersTable(t *testing.T, s *Store) *Table {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", []string{"id", "status", "total"}))
	require.NoError(t, s.Insert(ctx, "orders",
		value.Row{"id": 1, "status": "open", "total": 30},
		value.Row{"id": 2, "status": "void", "total": 10},
		value.Row{"id": 3, "status": "open", "total": 20},
		value.Row{"id": 4, "status": "open", "total": 30},
		value.Row{"id": 5, "status": "paid", "total": nil},
	))
	table, err := s.Table(ctx, "orders")
	require.NoError(t, err)
	return table
}

func order(id int64, status string, total any) value.Row {
	return value.Row{"id": id, "status": status, "total": total}
}

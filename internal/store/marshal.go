package store

import (
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/mengzui/Pinq/internal/value"
)

// ErrUnsupportedValue is returned when a value has no SQLite storage class.
var ErrUnsupportedValue = errors.New("unsupported column value")

// toColumnValue converts an element field to a SQL parameter.
// Text is NFC-normalized; booleans become 0/1.
func toColumnValue(column string, v any) (any, error) {
	switch val := value.Normalize(v).(type) {
	case nil, int64, float64, []byte:
		return val, nil
	case string:
		return norm.NFC.String(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("%w: column %q holds %T", ErrUnsupportedValue, column, v)
	}
}

// scanRow reads the current row into a Row keyed by columns.
func scanRow(rows *sql.Rows, columns []string) (value.Row, error) {
	dest := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := make(value.Row, len(columns))
	for i, col := range columns {
		row[col] = value.Normalize(dest[i])
	}
	return row, nil
}

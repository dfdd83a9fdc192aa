package query

import (
	"context"
	"slices"

	"github.com/mengzui/Pinq/internal/value"
)

// Source is the originating collection of a Query.
//
// Enumerate returns the raw elements in source order. Implementations may
// block on I/O; the query layer treats Source as read-only and never mutates
// what it returns.
type Source interface {
	Enumerate(ctx context.Context) ([]any, error)
}

// SliceSource is an in-memory Source over a fixed slice.
type SliceSource struct {
	values []any
}

// NewSliceSource copies and normalizes values.
func NewSliceSource(values ...any) *SliceSource {
	return &SliceSource{values: value.NormalizeAll(slices.Clone(values))}
}

// Enumerate returns a copy of the values.
func (s *SliceSource) Enumerate(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.values), nil
}

// Len returns the number of values.
func (s *SliceSource) Len() int {
	return len(s.values)
}

package request

import (
	"context"
	"fmt"
)

// Dispatcher answers requests, one method per variant.
type Dispatcher interface {
	Values(ctx context.Context, r Values) ([]any, error)
	First(ctx context.Context, r First) (any, error)
	Last(ctx context.Context, r Last) (any, error)
	Count(ctx context.Context, r Count) (int, error)
	Exists(ctx context.Context, r Exists) (bool, error)
	Contains(ctx context.Context, r Contains) (bool, error)
	Aggregate(ctx context.Context, r Aggregate) (any, error)
	Maximum(ctx context.Context, r Maximum) (any, error)
	Minimum(ctx context.Context, r Minimum) (any, error)
	Sum(ctx context.Context, r Sum) (any, error)
	Average(ctx context.Context, r Average) (float64, error)
	All(ctx context.Context, r All) (bool, error)
	Any(ctx context.Context, r Any) (bool, error)
	Implode(ctx context.Context, r Implode) (string, error)
}

// Dispatch invokes the method of d matching r's variant.
// Errors returned by d are passed through unchanged.
func Dispatch(ctx context.Context, d Dispatcher, r Request) (any, error) {
	switch req := r.(type) {
	case Values:
		return d.Values(ctx, req)
	case First:
		return d.First(ctx, req)
	case Last:
		return d.Last(ctx, req)
	case Count:
		return d.Count(ctx, req)
	case Exists:
		return d.Exists(ctx, req)
	case Contains:
		return d.Contains(ctx, req)
	case Aggregate:
		return d.Aggregate(ctx, req)
	case Maximum:
		return d.Maximum(ctx, req)
	case Minimum:
		return d.Minimum(ctx, req)
	case Sum:
		return d.Sum(ctx, req)
	case Average:
		return d.Average(ctx, req)
	case All:
		return d.All(ctx, req)
	case Any:
		return d.Any(ctx, req)
	case Implode:
		return d.Implode(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported request type: %T", r)
	}
}

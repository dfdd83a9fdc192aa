package compiler

import (
	"context"
	"fmt"

	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/store"
)

// SourceRef names where a query's elements come from. Exactly one of
// Table, Bucket or Inline is set.
type SourceRef struct {
	Table  string
	Bucket string
	Inline bool
	Values []any
}

func (r SourceRef) String() string {
	switch {
	case r.Table != "":
		return "table " + r.Table
	case r.Bucket != "":
		return "bucket " + r.Bucket
	default:
		return fmt.Sprintf("inline values (%d)", len(r.Values))
	}
}

// Resolver opens the source a reference names.
type Resolver interface {
	Resolve(ctx context.Context, ref SourceRef) (query.Source, error)
}

// Backends resolves tables from a SQLite store and buckets from a bolt
// store. Either may be nil when documents do not use it.
type Backends struct {
	Store *store.Store
	KV    *kvstore.Store
}

func (b Backends) Resolve(ctx context.Context, ref SourceRef) (query.Source, error) {
	switch {
	case ref.Inline:
		return query.NewSliceSource(ref.Values...), nil
	case ref.Table != "":
		if b.Store == nil {
			return nil, fmt.Errorf("no table store configured for %s", ref)
		}
		t, err := b.Store.Table(ctx, ref.Table)
		if err != nil {
			return nil, err
		}
		return t, nil
	case ref.Bucket != "":
		if b.KV == nil {
			return nil, fmt.Errorf("no bucket store configured for %s", ref)
		}
		bk, err := b.KV.Bucket(ref.Bucket)
		if err != nil {
			return nil, err
		}
		return bk, nil
	default:
		return nil, fmt.Errorf("empty source reference")
	}
}

// Build binds the document's query to its source.
func (d *Document) Build(ctx context.Context, r Resolver) (*query.Query, error) {
	return d.Query.Build(ctx, r)
}

// Build resolves the source and every set operand, then applies the
// operations in order.
func (s QuerySpec) Build(ctx context.Context, r Resolver) (*query.Query, error) {
	src, err := r.Resolve(ctx, s.From)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrUnresolvedSource,
			Field:   "from",
			Message: fmt.Sprintf("cannot open %s: %v", s.From, err),
			Err:     err,
		}
	}

	q := query.New(src)
	for _, op := range s.ops {
		if op.operand == nil {
			q = q.With(op.op)
			continue
		}
		other, err := op.operand.Build(ctx, r)
		if err != nil {
			return nil, err
		}
		q = q.With(query.SetCombine{Kind: op.set, Other: other})
	}
	return q, nil
}

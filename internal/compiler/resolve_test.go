package compiler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/store"
	"github.com/mengzui/Pinq/internal/value"
)

func openBackends(t *testing.T) Backends {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "pinq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateTable(ctx, "orders", []string{"id", "total"}))
	require.NoError(t, st.Insert(ctx, "orders",
		value.Row{"id": 1, "total": 30},
		value.Row{"id": 2, "total": 10},
	))

	kv, err := kvstore.Open(filepath.Join(dir, "pinq.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	require.NoError(t, kv.CreateBucket("ids"))
	require.NoError(t, kv.Append("ids", 2, 3))

	return Backends{Store: st, KV: kv}
}

func TestBuild_ResolvesTablesAndBuckets(t *testing.T) {
	ctx := context.Background()
	b := openBackends(t)

	doc, err := Parse([]byte(`
from: {table: orders}
ops:
  - select: id
  - intersect:
      from: {bucket: ids}
request: values
`), FormatYAML, "join.yaml")
	require.NoError(t, err)

	q, err := doc.Build(ctx, b)
	require.NoError(t, err)
	got, err := request.Dispatch(ctx, evaluator.New(q), doc.Request)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, got)
}

func TestBuild_TableIsPushdownSource(t *testing.T) {
	ctx := context.Background()
	b := openBackends(t)

	doc, err := Parse([]byte("from: {table: orders}\nrequest: count\n"), FormatYAML, "count.yaml")
	require.NoError(t, err)
	q, err := doc.Build(ctx, b)
	require.NoError(t, err)

	_, ok := q.Source().(evaluator.CountHook)
	assert.True(t, ok)
}

func TestBuild_UnresolvedSource(t *testing.T) {
	ctx := context.Background()
	b := openBackends(t)

	doc, err := Parse([]byte("from: {table: missing}\nrequest: count\n"), FormatYAML, "missing.yaml")
	require.NoError(t, err)
	_, err = doc.Build(ctx, b)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrUnresolvedSource, ce.Code)
	assert.True(t, errors.Is(err, store.ErrTableNotFound))

	doc, err = Parse([]byte("from: {bucket: missing}\nrequest: count\n"), FormatYAML, "missing.yaml")
	require.NoError(t, err)
	_, err = doc.Build(ctx, b)
	assert.True(t, errors.Is(err, kvstore.ErrBucketNotFound))
}

func TestBuild_NoBackendConfigured(t *testing.T) {
	ctx := context.Background()
	for _, src := range []string{"{table: t}", "{bucket: b}"} {
		doc, err := Parse([]byte("from: "+src+"\nrequest: count\n"), FormatYAML, "x.yaml")
		require.NoError(t, err)
		_, err = doc.Build(ctx, Backends{})
		assert.Error(t, err, src)
	}
}

func TestSourceRef_String(t *testing.T) {
	assert.Equal(t, "table orders", SourceRef{Table: "orders"}.String())
	assert.Equal(t, "bucket ids", SourceRef{Bucket: "ids"}.String())
	assert.Equal(t, "inline values (2)", SourceRef{Inline: true, Values: []any{1, 2}}.String())
}

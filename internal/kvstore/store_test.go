package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/testutil"
	"github.com/mengzui/Pinq/internal/value"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestBucket(t *testing.T, s *Store, name string, values ...any) *Bucket {
	t.Helper()
	require.NoError(t, s.CreateBucket(name))
	require.NoError(t, s.Append(name, values...))
	b, err := s.Bucket(name)
	require.NoError(t, err)
	return b
}

func TestBucket_EnumerateRoundTrip(t *testing.T) {
	s := createTestStore(t)
	b := createTestBucket(t, s, "things",
		1, int8(-2), uint32(3), 2.5, "text", []byte{0xff}, nil, true,
		value.Row{"n": 1, "tags": []any{"a", int16(2)}},
	)

	got, err := b.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		int64(1), int64(-2), int64(3), 2.5, "text", []byte{0xff}, nil, true,
		map[string]any{"n": int64(1), "tags": []any{"a", int64(2)}},
	}, got)
}

func TestBucket_KeysFollowAppendOrder(t *testing.T) {
	s := createTestStore(t)
	b := createTestBucket(t, s, "seq")

	// Enough elements that a naive byte encoding of the counter would misorder.
	for i := range 300 {
		require.NoError(t, s.Append("seq", i))
	}

	keys, err := b.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 300)
	for i, k := range keys {
		assert.Equal(t, uint64(i+1), k)
	}

	values, err := b.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), values[0])
	assert.Equal(t, int64(299), values[299])
}

func TestStore_Buckets(t *testing.T) {
	s := createTestStore(t)

	names, err := s.Buckets()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.CreateBucket("b"))
	require.NoError(t, s.CreateBucket("a"))
	require.NoError(t, s.CreateBucket("a"), "idempotent")

	names, err = s.Buckets()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, s.DeleteBucket("a"))
	assert.ErrorIs(t, s.DeleteBucket("a"), ErrBucketNotFound)
	assert.Error(t, s.CreateBucket(""))
}

func TestStore_MissingBucket(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Bucket("missing")
	assert.ErrorIs(t, err, ErrBucketNotFound)
	assert.ErrorIs(t, s.Append("missing", 1), ErrBucketNotFound)
}

func TestStore_AppendRejectsUnsupported(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.CreateBucket("b"))

	err := s.Append("b", 1, struct{ X int }{1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	// The whole append was rolled back.
	b, err := s.Bucket("b")
	require.NoError(t, err)
	values, err := b.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestBucket_Hooks(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := createTestBucket(t, s, "nums", 3, 1, 2)
	q := b.Query()

	n, ok, err := b.TryCount(ctx, q, request.Count{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	exists, ok, err := b.TryExists(ctx, q, request.Exists{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, exists)

	first, ok, err := b.TryFirst(ctx, q, request.First{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), first)

	last, ok, err := b.TryLast(ctx, q, request.Last{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), last)

	// Any operation makes the bucket decline.
	_, ok, err = b.TryCount(ctx, q.Take(1), request.Count{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBucket_HooksOnEmptyBucket(t *testing.T) {
	ctx := context.Background()
	b := createTestBucket(t, createTestStore(t), "empty")

	n, ok, err := b.TryCount(ctx, b.Query(), request.Count{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok, err = b.TryLast(ctx, b.Query(), request.Last{})
	assert.True(t, ok)
	assert.True(t, request.IsEmptySequence(err))
}

func TestBucket_EvaluatorPushdownAndFallback(t *testing.T) {
	ctx := context.Background()
	b := createTestBucket(t, createTestStore(t), "nums", 3, 1, 2)
	obs := &testutil.RecordingObserver{}

	e := evaluator.New(b.Query(), evaluator.WithObserver(obs))
	n, err := e.Count(ctx, request.Count{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sum, err := e.Sum(ctx, request.Sum{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), sum)

	sorted := evaluator.New(b.Query().OrderBy(query.Identity))
	first, err := sorted.First(ctx, request.First{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.True(t, sorted.IsLoaded())

	assert.Equal(t, []string{"pushdown:count", "declined:sum", "materialized"}, obs.Events())
}

func TestKeyEncoding(t *testing.T) {
	for _, seq := range []uint64{1, 255, 256, 1 << 40} {
		got, err := decodeKey(encodeKey(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
	assert.Less(t, string(encodeKey(255)), string(encodeKey(256)))
}

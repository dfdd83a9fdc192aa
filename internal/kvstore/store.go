package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openkvlab/boltdb"
	boltdb_errors "github.com/openkvlab/boltdb/errors"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
)

// ErrBucketNotFound is returned when a bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// DefaultOpenTimeout bounds how long Open waits for the file lock.
const DefaultOpenTimeout = time.Second

// Store is a bolt database of element buckets.
type Store struct {
	db *boltdb.DB
}

// Option configures Open.
type Option func(*boltdb.Options)

// WithOpenTimeout sets how long Open waits for the file lock.
//
// Default: 1s (DefaultOpenTimeout)
func WithOpenTimeout(d time.Duration) Option {
	return func(o *boltdb.Options) {
		o.Timeout = d
	}
}

// Open creates or opens a bolt database at path.
func Open(path string, opts ...Option) (*Store, error) {
	options := &boltdb.Options{Timeout: DefaultOpenTimeout}
	for _, opt := range opts {
		opt(options)
	}
	db, err := boltdb.Open(path, os.FileMode(0o600), options)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateBucket creates an empty bucket. Creating an existing bucket is a no-op.
func (s *Store) CreateBucket(name string) error {
	if name == "" {
		return fmt.Errorf("create bucket: empty name")
	}
	return s.db.Update(func(tx *boltdb.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// DeleteBucket removes a bucket and its elements.
func (s *Store) DeleteBucket(name string) error {
	return s.db.Update(func(tx *boltdb.Tx) error {
		err := tx.DeleteBucket([]byte(name))
		if errors.Is(err, boltdb_errors.ErrBucketNotFound) {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		}
		return err
	})
}

// Buckets lists bucket names in byte order.
func (s *Store) Buckets() ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *boltdb.Tx) error {
		return tx.ForEach(func(name []byte, _ *boltdb.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// Append adds values to the end of a bucket in one transaction.
func (s *Store) Append(name string, values ...any) error {
	return s.db.Update(func(tx *boltdb.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		}
		for i, v := range values {
			data, err := encodeValue(v)
			if err != nil {
				return fmt.Errorf("append to %s: element %d: %w", name, i, err)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("append to %s: %w", name, err)
			}
			if err := b.Put(encodeKey(seq), data); err != nil {
				return fmt.Errorf("append to %s: %w", name, err)
			}
		}
		return nil
	})
}

// Bucket returns a query source over an existing bucket.
func (s *Store) Bucket(name string) (*Bucket, error) {
	err := s.db.View(func(tx *boltdb.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Bucket{store: s, name: name}, nil
}

// Bucket is a query source over one bolt bucket.
type Bucket struct {
	store *Store
	name  string
}

var (
	_ query.Source         = (*Bucket)(nil)
	_ evaluator.CountHook  = (*Bucket)(nil)
	_ evaluator.ExistsHook = (*Bucket)(nil)
	_ evaluator.FirstHook  = (*Bucket)(nil)
	_ evaluator.LastHook   = (*Bucket)(nil)
)

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Query starts a query over the bucket.
func (b *Bucket) Query() *query.Query {
	return query.New(b)
}

// view runs fn against the bucket in a read transaction.
func (b *Bucket) view(fn func(*boltdb.Bucket) error) error {
	return b.store.db.View(func(tx *boltdb.Tx) error {
		bucket := tx.Bucket([]byte(b.name))
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, b.name)
		}
		return fn(bucket)
	})
}

// Enumerate returns every element in append order.
func (b *Bucket) Enumerate(ctx context.Context) ([]any, error) {
	out := []any{}
	err := b.view(func(bucket *boltdb.Bucket) error {
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			elem, err := decodeValue(v)
			if err != nil {
				return fmt.Errorf("enumerate %s: %w", b.name, err)
			}
			out = append(out, elem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Keys returns the sequence numbers in append order.
func (b *Bucket) Keys() ([]uint64, error) {
	var keys []uint64
	err := b.view(func(bucket *boltdb.Bucket) error {
		return bucket.ForEach(func(k, _ []byte) error {
			seq, err := decodeKey(k)
			if err != nil {
				return err
			}
			keys = append(keys, seq)
			return nil
		})
	})
	return keys, err
}

// direct reports whether q can be answered from the raw bucket.
func (b *Bucket) direct(q *query.Query, kind request.Kind) bool {
	ok := q != nil && q.Source() == query.Source(b) && q.Len() == 0
	if !ok {
		slog.Debug("bucket pushdown declined",
			"bucket", b.name,
			"request", kind,
		)
	}
	return ok
}

// TryCount answers Count from bucket statistics.
func (b *Bucket) TryCount(_ context.Context, q *query.Query, r request.Count) (int, bool, error) {
	if !b.direct(q, r.Kind()) {
		return 0, false, nil
	}
	var n int
	err := b.view(func(bucket *boltdb.Bucket) error {
		n = bucket.Stats().KeyN
		return nil
	})
	return n, true, err
}

// TryExists checks whether the cursor has a first key.
func (b *Bucket) TryExists(_ context.Context, q *query.Query, r request.Exists) (bool, bool, error) {
	if !b.direct(q, r.Kind()) {
		return false, false, nil
	}
	var exists bool
	err := b.view(func(bucket *boltdb.Bucket) error {
		k, _ := bucket.Cursor().First()
		exists = k != nil
		return nil
	})
	return exists, true, err
}

// TryFirst decodes the element under the first cursor key.
func (b *Bucket) TryFirst(_ context.Context, q *query.Query, r request.First) (any, bool, error) {
	if !b.direct(q, r.Kind()) {
		return nil, false, nil
	}
	elem, err := b.edge(r.Kind(), func(c *boltdb.Cursor) ([]byte, []byte) { return c.First() })
	return elem, true, err
}

// TryLast decodes the element under the last cursor key.
func (b *Bucket) TryLast(_ context.Context, q *query.Query, r request.Last) (any, bool, error) {
	if !b.direct(q, r.Kind()) {
		return nil, false, nil
	}
	elem, err := b.edge(r.Kind(), func(c *boltdb.Cursor) ([]byte, []byte) { return c.Last() })
	return elem, true, err
}

func (b *Bucket) edge(kind request.Kind, seek func(*boltdb.Cursor) ([]byte, []byte)) (any, error) {
	var elem any
	err := b.view(func(bucket *boltdb.Bucket) error {
		k, v := seek(bucket.Cursor())
		if k == nil {
			return request.NewEmptySequenceError(kind)
		}
		var err error
		elem, err = decodeValue(v)
		return err
	})
	return elem, err
}

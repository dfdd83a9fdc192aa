package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/value"
)

// CountingSource is an in-memory source that counts enumerations.
//
// Contents can be replaced between calls to simulate a live external
// source whose data changes. Err, when set, is returned by Enumerate.
//
// Thread-safety: all methods are safe for concurrent use.
type CountingSource struct {
	mu     sync.Mutex
	values []any
	calls  int
	err    error
}

// NewCountingSource creates a source over values.
func NewCountingSource(values ...any) *CountingSource {
	return &CountingSource{values: value.NormalizeAll(slices.Clone(values))}
}

// Enumerate returns a copy of the current contents.
func (s *CountingSource) Enumerate(ctx context.Context) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.values), nil
}

// Set replaces the contents.
func (s *CountingSource) Set(values ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = value.NormalizeAll(slices.Clone(values))
}

// Fail makes subsequent enumerations return err. A nil err clears the failure.
func (s *CountingSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Enumerate was invoked.
func (s *CountingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Len returns the current number of elements.
func (s *CountingSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// CountingHookSource is a CountingSource with Count, First and Exists hooks.
//
// The hooks answer only queries without operations and read the live
// contents, so tests can observe whether an answer came from the source
// or from a materialized snapshot. Setting Decline makes every hook decline.
type CountingHookSource struct {
	*CountingSource

	mu        sync.Mutex
	hookCalls map[request.Kind]int
	decline   bool
}

// NewCountingHookSource creates a hook-capable source over values.
func NewCountingHookSource(values ...any) *CountingHookSource {
	return &CountingHookSource{
		CountingSource: NewCountingSource(values...),
		hookCalls:      make(map[request.Kind]int),
	}
}

// Decline makes all hooks decline when on is true.
func (s *CountingHookSource) Decline(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decline = on
}

// HookCalls returns how many times the hook for kind was invoked.
func (s *CountingHookSource) HookCalls(kind request.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hookCalls[kind]
}

func (s *CountingHookSource) enter(kind request.Kind, q *query.Query) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hookCalls[kind]++
	return !s.decline && q.Len() == 0
}

func (s *CountingHookSource) snapshot() []any {
	s.CountingSource.mu.Lock()
	defer s.CountingSource.mu.Unlock()
	return slices.Clone(s.values)
}

// TryCount answers Count from the live contents.
func (s *CountingHookSource) TryCount(_ context.Context, q *query.Query, r request.Count) (int, bool, error) {
	if !s.enter(r.Kind(), q) {
		return 0, false, nil
	}
	return len(s.snapshot()), true, nil
}

// TryExists answers Exists from the live contents.
func (s *CountingHookSource) TryExists(_ context.Context, q *query.Query, r request.Exists) (bool, bool, error) {
	if !s.enter(r.Kind(), q) {
		return false, false, nil
	}
	return len(s.snapshot()) > 0, true, nil
}

// TryFirst answers First from the live contents.
func (s *CountingHookSource) TryFirst(_ context.Context, q *query.Query, r request.First) (any, bool, error) {
	if !s.enter(r.Kind(), q) {
		return nil, false, nil
	}
	values := s.snapshot()
	if len(values) == 0 {
		return nil, true, request.NewEmptySequenceError(r.Kind())
	}
	return values[0], true, nil
}

// RecordingObserver records evaluator events in order.
//
// Implements evaluator.Observer interface.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingObserver struct {
	mu     sync.Mutex
	events []string
}

// Pushdown records "pushdown:<kind>".
func (o *RecordingObserver) Pushdown(kind request.Kind) { o.add("pushdown:" + string(kind)) }

// Declined records "declined:<kind>".
func (o *RecordingObserver) Declined(kind request.Kind) { o.add("declined:" + string(kind)) }

// Cached records "cached:<kind>".
func (o *RecordingObserver) Cached(kind request.Kind) { o.add("cached:" + string(kind)) }

// Materialized records "materialized".
func (o *RecordingObserver) Materialized(int) { o.add("materialized") }

func (o *RecordingObserver) add(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.events)
}

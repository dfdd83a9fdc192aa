package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mengzui/Pinq/internal/compiler"
	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/store"
	"github.com/mengzui/Pinq/internal/testutil"
	"github.com/mengzui/Pinq/internal/value"
)

// Harness holds the backends of one scenario run.
type Harness struct {
	dir    string
	store  *store.Store
	kv     *kvstore.Store
	memory map[string][]any
}

// Run executes a scenario and returns the result.
//
// Each run uses fresh databases in a temporary directory, removed when the
// run ends. The error is non-nil only when the run itself could not
// proceed; failed expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := open(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for _, step := range scenario.Steps {
		if err := h.runStep(ctx, scenario, step, result); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	slog.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "events", len(result.Trace))
	return result, nil
}

func open(ctx context.Context, scenario *Scenario) (*Harness, error) {
	dir, err := os.MkdirTemp("", "pinq-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	h := &Harness{dir: dir, memory: map[string][]any{}}

	if h.store, err = store.Open(filepath.Join(dir, "pinq.db")); err != nil {
		h.close()
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if h.kv, err = kvstore.Open(filepath.Join(dir, "pinq.bolt")); err != nil {
		h.close()
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	if err := h.seed(ctx, scenario.Tables); err != nil {
		h.close()
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	return h, nil
}

func (h *Harness) close() {
	if h.store != nil {
		if err := h.store.Close(); err != nil {
			slog.Error("error closing sqlite store", "error", err)
		}
	}
	if h.kv != nil {
		if err := h.kv.Close(); err != nil {
			slog.Error("error closing bolt store", "error", err)
		}
	}
	os.RemoveAll(h.dir)
}

func (h *Harness) seed(ctx context.Context, tables map[string]Fixture) error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := tables[name]
		rows := f.rows()

		if err := h.store.CreateTable(ctx, name, f.Columns); err != nil {
			return err
		}
		if err := h.store.Insert(ctx, name, rows...); err != nil {
			return err
		}

		elems := make([]any, len(rows))
		for i, r := range rows {
			elems[i] = r
		}
		if err := h.kv.CreateBucket(name); err != nil {
			return err
		}
		if err := h.kv.Append(name, elems...); err != nil {
			return err
		}
		h.memory[name] = elems
	}
	return nil
}

// resolver reads fixtures from one backend. Table and bucket references
// name the same fixture.
type resolver struct {
	backend string
	h       *Harness
}

func (r resolver) Resolve(ctx context.Context, ref compiler.SourceRef) (query.Source, error) {
	if ref.Inline {
		return query.NewSliceSource(ref.Values...), nil
	}
	name := ref.Table
	if name == "" {
		name = ref.Bucket
	}
	switch r.backend {
	case BackendMemory:
		rows, ok := r.h.memory[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, name)
		}
		return query.NewSliceSource(rows...), nil
	case BackendSQLite:
		t, err := r.h.store.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		b, err := r.h.kv.Bucket(name)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// observer records evaluator events into the result trace.
type observer struct {
	result  *Result
	step    string
	backend string
}

func (o observer) Pushdown(kind request.Kind) { o.event(EventPushdown, kind) }
func (o observer) Declined(kind request.Kind) { o.event(EventDeclined, kind) }
func (o observer) Cached(kind request.Kind)   { o.event(EventCached, kind) }

func (o observer) Materialized(n int) {
	o.result.add(TraceEvent{Step: o.step, Backend: o.backend, Type: EventMaterialized, Elements: n})
}

func (o observer) event(typ string, kind request.Kind) {
	o.result.add(TraceEvent{Step: o.step, Backend: o.backend, Type: typ, Request: string(kind)})
}

func (h *Harness) runStep(ctx context.Context, scenario *Scenario, step Step, result *Result) error {
	doc, err := compiler.ParseValue(step.Query)
	if err != nil {
		return err
	}
	type check struct {
		req    request.Request
		expect Expect
	}
	checks := []check{{doc.Request, step.Expect}}
	for _, f := range step.Then {
		req, err := compiler.ParseRequest(f.Request)
		if err != nil {
			return err
		}
		checks = append(checks, check{req, f.Expect})
	}

	for _, backend := range scenario.backends() {
		q, err := doc.Build(ctx, resolver{backend: backend, h: h})
		if err != nil {
			return err
		}
		obs := observer{result: result, step: step.Name, backend: backend}
		ev := evaluator.New(q,
			evaluator.WithObserver(obs),
			evaluator.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name+"/"+step.Name+"/"+backend)),
		)

		for _, c := range checks {
			got, gotErr := request.Dispatch(ctx, ev, c.req)
			where := fmt.Sprintf("step %q [%s] %s", step.Name, backend, c.req.Kind())
			obs.answer(c.req.Kind(), got, gotErr)

			if msg := compareExpect(c.expect, got, gotErr); msg != "" {
				result.AddError(where + ": " + msg)
			}
			want, wantErr := groundTruth(ctx, q, c.req)
			if msg := compareTruth(want, wantErr, got, gotErr); msg != "" {
				result.AddError(where + ": disagrees with reference: " + msg)
			}
		}
	}
	return nil
}

func (o observer) answer(kind request.Kind, v any, err error) {
	e := TraceEvent{Step: o.step, Backend: o.backend, Type: EventResult, Request: string(kind), Value: v}
	if err != nil {
		e.Type, e.Value, e.Error = EventError, nil, errorLabel(err)
	}
	o.result.add(e)
}

// groundTruth evaluates r in memory over the materialized query.
func groundTruth(ctx context.Context, q *query.Query, r request.Request) (any, error) {
	values, err := query.Materialize(ctx, q)
	if err != nil {
		return nil, err
	}
	return request.Dispatch(ctx, evaluator.NewReference(values), r)
}

// errorLabel is the request error code when err carries one, else its
// message.
func errorLabel(err error) string {
	var re *request.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return err.Error()
}

func compareExpect(exp Expect, got any, err error) string {
	if exp.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error %q, got %s", exp.Error, render(got))
		}
		if errorLabel(err) != exp.Error && !strings.Contains(err.Error(), exp.Error) {
			return fmt.Sprintf("expected error %q, got %q", exp.Error, err.Error())
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if !value.Equal(exp.Value, got) {
		return fmt.Sprintf("expected %s, got %s", render(exp.Value), render(got))
	}
	return ""
}

func compareTruth(want any, wantErr error, got any, gotErr error) string {
	switch {
	case wantErr != nil && gotErr != nil:
		if request.IsEmptySequence(wantErr) != request.IsEmptySequence(gotErr) {
			return fmt.Sprintf("error %q, reference error %q", gotErr, wantErr)
		}
		return ""
	case wantErr != nil:
		return fmt.Sprintf("got %s, reference error %q", render(got), wantErr)
	case gotErr != nil:
		return fmt.Sprintf("error %q, reference %s", gotErr, render(want))
	}
	if !value.Equal(want, got) {
		return fmt.Sprintf("got %s, reference %s", render(got), render(want))
	}
	return ""
}

func render(v any) string {
	data, err := value.Canonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

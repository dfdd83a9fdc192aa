package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mengzui/Pinq/internal/compiler"
	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/metrics"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Backends BackendOptions
	Metrics  bool

	// IDGenerator overrides the evaluator ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator evaluator.IDGenerator
}

// EvalResult is the answer to a document's request.
type EvalResult struct {
	Name      string `json:"name,omitempty"`
	Request   string `json:"request"`
	Value     any    `json:"value"`
	Evaluator string `json:"evaluator"`
	Loaded    bool   `json:"loaded"` // whether answering needed materialization
}

// String renders only the value.
func (r EvalResult) String() string {
	return renderText(r.Value)
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <document>",
		Short: "Evaluate a query document",
		Long: `Evaluate the request of a query document (YAML, JSON or CUE).

The request is pushed down to the table or bucket when the backend can
answer it, and otherwise answered from a one-time materialization.

Examples:
  pinq eval --db ./pinq.db open-orders.yaml
  pinq eval --kv ./pinq.bolt --format json events.cue
  pinq eval --db ./pinq.db --metrics totals.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	opts.Backends.register(cmd)
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print evaluator metrics to stderr")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := compiler.ParseFile(path)
	if err != nil {
		return f.Fail("failed to compile document", err)
	}

	backends, closeAll, err := openBackends(opts.RootOptions, opts.Backends)
	if err != nil {
		return f.Fail("failed to open backends", err)
	}
	defer closeAll()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	q, err := doc.Build(ctx, backends)
	if err != nil {
		return f.Fail("failed to build query", err)
	}
	for _, w := range query.Validate(q).Warnings {
		f.VerboseLog("warning: %s", w)
	}

	reg := prometheus.NewRegistry()
	var evOpts []evaluator.Option
	if opts.Metrics {
		evOpts = append(evOpts, evaluator.WithObserver(metrics.New(reg)))
	}
	if opts.IDGenerator != nil {
		evOpts = append(evOpts, evaluator.WithIDGenerator(opts.IDGenerator))
	}
	ev := evaluator.New(q, evOpts...)

	v, err := request.Dispatch(ctx, ev, doc.Request)
	if err != nil {
		return f.Fail("request failed", err)
	}

	if err := f.Success(EvalResult{
		Name:      doc.Name,
		Request:   string(doc.Request.Kind()),
		Value:     v,
		Evaluator: ev.ID(),
		Loaded:    ev.IsLoaded(),
	}); err != nil {
		return err
	}

	if opts.Metrics {
		return metrics.WriteText(f.GetErrWriter(), reg)
	}
	return nil
}

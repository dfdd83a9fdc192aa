package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mengzui/Pinq/internal/compiler"
	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/querysql"
	"github.com/mengzui/Pinq/internal/request"
	"github.com/mengzui/Pinq/internal/store"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Backends BackendOptions
}

// Explanation describes how a document's request would be answered.
type Explanation struct {
	Source   string   `json:"source"`
	Request  string   `json:"request"`
	Pushdown bool     `json:"pushdown"`
	SQL      string   `json:"sql,omitempty"`
	Params   []any    `json:"params,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (e Explanation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source:   %s\n", e.Source)
	fmt.Fprintf(&b, "request:  %s\n", e.Request)
	if e.Pushdown {
		fmt.Fprintln(&b, "pushdown: yes")
	} else {
		fmt.Fprintln(&b, "pushdown: no (materializes)")
	}
	if e.SQL != "" {
		fmt.Fprintf(&b, "sql:      %s\n", e.SQL)
		fmt.Fprintf(&b, "params:   %s\n", renderText(e.Params))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "reason:   %s\n", e.Reason)
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(&b, "warning:  %s\n", w)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <document>",
		Short: "Show how a request would be answered",
		Long: `Show whether a document's request would be pushed down to its backend,
the SQL it compiles to for tables, or why it would be materialized.

Example:
  pinq explain --db ./pinq.db open-orders.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.Backends.register(cmd)
	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
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

	exp, err := explain(q, doc.Request, doc.Query.From)
	if err != nil {
		return f.Fail("failed to explain request", err)
	}
	return f.Success(exp)
}

// bucketHooks are the requests a bucket answers without materializing.
var bucketHooks = map[request.Kind]bool{
	request.KindCount:  true,
	request.KindExists: true,
	request.KindFirst:  true,
	request.KindLast:   true,
}

func explain(q *query.Query, r request.Request, from compiler.SourceRef) (Explanation, error) {
	exp := Explanation{
		Source:   from.String(),
		Request:  string(r.Kind()),
		Warnings: query.Validate(q).Warnings,
	}

	switch src := q.Source().(type) {
	case *store.Table:
		st, err := src.Explain(q, r)
		if errors.Is(err, querysql.ErrNotPortable) {
			exp.Reason = err.Error()
			return exp, nil
		}
		if err != nil {
			return Explanation{}, err
		}
		exp.Pushdown, exp.SQL, exp.Params = true, st.SQL, st.Params
		if st.Shape == querysql.ShapeSum {
			exp.Reason = "answered only when every summed value is an integer and the total fits an int64"
		}
	case *kvstore.Bucket:
		switch {
		case !bucketHooks[r.Kind()]:
			exp.Reason = fmt.Sprintf("buckets do not answer %s requests", r.Kind())
		case q.Len() > 0:
			exp.Reason = "buckets answer only queries without operations"
		default:
			exp.Pushdown = true
		}
	default:
		exp.Reason = "in-memory source"
	}
	return exp, nil
}

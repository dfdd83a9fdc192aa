package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mengzui/Pinq/internal/store"
	"github.com/mengzui/Pinq/internal/value"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Backends BackendOptions
	Table    string
	Bucket   string
	Columns  []string
}

// LoadResult reports what the load command wrote.
type LoadResult struct {
	Target  string `json:"target"`
	Rows    int    `json:"rows"`
	Created bool   `json:"created"`
}

func (r LoadResult) String() string {
	if r.Created {
		return fmt.Sprintf("Loaded %d row(s) into new %s", r.Rows, r.Target)
	}
	return fmt.Sprintf("Loaded %d row(s) into %s", r.Rows, r.Target)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <rows-file>",
		Short: "Append rows to a table or bucket",
		Long: `Append the elements of a YAML or JSON list to a SQLite table or a bolt
bucket, creating it if needed.

A new table takes its columns from --columns, or else from the sorted
union of the rows' keys.

Examples:
  pinq load --db ./pinq.db --table orders orders.yaml
  pinq load --db ./pinq.db --table orders --columns id,status,total orders.json
  pinq load --kv ./pinq.bolt --bucket events events.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	opts.Backends.register(cmd)
	cmd.Flags().StringVar(&opts.Table, "table", "", "target SQLite table")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "target bolt bucket")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns of a new table")
	cmd.MarkFlagsMutuallyExclusive("table", "bucket")
	cmd.MarkFlagsOneRequired("table", "bucket")

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	elements, err := readElements(path)
	if err != nil {
		return f.Fail("failed to read rows", err)
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

	var result LoadResult
	if opts.Table != "" {
		if backends.Store == nil {
			return f.Fail("failed to load rows", errors.New("--table needs --db or store.path"))
		}
		result, err = loadTable(ctx, backends.Store, opts.Table, opts.Columns, elements)
	} else {
		if backends.KV == nil {
			return f.Fail("failed to load rows", errors.New("--bucket needs --kv or kv.path"))
		}
		result = LoadResult{Target: "bucket " + opts.Bucket, Rows: len(elements)}
		if err = backends.KV.CreateBucket(opts.Bucket); err == nil {
			err = backends.KV.Append(opts.Bucket, elements...)
		}
	}
	if err != nil {
		return f.Fail("failed to load rows", err)
	}
	return f.Success(result)
}

// readElements decodes a YAML or JSON list.
func readElements(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var elements []any
	if err := yaml.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%s: expected a list: %w", path, err)
	}
	return value.NormalizeAll(elements), nil
}

func loadTable(ctx context.Context, st *store.Store, name string, columns []string, elements []any) (LoadResult, error) {
	result := LoadResult{Target: "table " + name, Rows: len(elements)}

	rows := make([]value.Row, len(elements))
	for i, e := range elements {
		row, ok := e.(map[string]any)
		if !ok {
			return LoadResult{}, fmt.Errorf("element %d: expected a mapping, got %T", i, e)
		}
		rows[i] = row
	}

	if _, err := st.Columns(ctx, name); errors.Is(err, store.ErrTableNotFound) {
		if len(columns) == 0 {
			columns = unionKeys(rows)
		}
		if err := st.CreateTable(ctx, name, columns); err != nil {
			return LoadResult{}, err
		}
		result.Created = true
	} else if err != nil {
		return LoadResult{}, err
	}

	if err := st.Insert(ctx, name, rows...); err != nil {
		return LoadResult{}, err
	}
	return result, nil
}

func unionKeys(rows []value.Row) []string {
	seen := map[string]bool{}
	var keys []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

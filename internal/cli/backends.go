package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mengzui/Pinq/internal/compiler"
	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/store"
)

// BackendOptions selects the databases a document may read.
type BackendOptions struct {
	Database string // SQLite path; defaults to store.path
	KV       string // bolt path; defaults to kv.path
}

func (b *BackendOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.Database, "db", "", "path to SQLite database (default from config store.path)")
	cmd.Flags().StringVar(&b.KV, "kv", "", "path to bolt database (default from config kv.path)")
}

// openBackends opens the configured databases. Flags win over config; an
// unset path leaves that backend closed. The returned func closes both.
func openBackends(root *RootOptions, b BackendOptions) (compiler.Backends, func(), error) {
	var backends compiler.Backends
	closeAll := func() {
		if backends.Store != nil {
			if err := backends.Store.Close(); err != nil {
				slog.Error("error closing database", "error", err)
			}
		}
		if backends.KV != nil {
			if err := backends.KV.Close(); err != nil {
				slog.Error("error closing bolt database", "error", err)
			}
		}
	}

	dbPath := b.Database
	if dbPath == "" {
		dbPath = root.Config.Store.Path
	}
	if dbPath != "" {
		slog.Debug("opening database", "path", dbPath)
		st, err := store.Open(dbPath, store.WithBusyTimeout(root.Config.Store.Timeout))
		if err != nil {
			return compiler.Backends{}, nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backends.Store = st
	}

	kvPath := b.KV
	if kvPath == "" {
		kvPath = root.Config.KV.Path
	}
	if kvPath != "" {
		slog.Debug("opening bolt database", "path", kvPath)
		kv, err := kvstore.Open(kvPath, kvstore.WithOpenTimeout(root.Config.KV.Timeout))
		if err != nil {
			closeAll()
			return compiler.Backends{}, nil, WrapExitError(ExitCommandError, "failed to open bolt database", err)
		}
		backends.KV = kv
	}

	return backends, closeAll, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

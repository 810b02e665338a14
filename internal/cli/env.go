package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/dimension"
	"github.com/roach88/scd2/internal/logger"
	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// env is what a command needs to touch one dimension: the resolved schema,
// an open store and a logger.
type env struct {
	schema record.Schema
	store  *store.Store
	log    *logger.Logger
	out    *OutputFormatter
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
}

// openEnv resolves the selected dimension and opens the database.
// The caller must call close.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	out := formatter(opts, cmd)

	log := opts.Logger
	if log == nil {
		l, err := logger.New(opts.LogMode, opts.Verbose)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
		}
		log = l
	}

	schema, err := dimension.Resolve(opts.Dimensions, opts.Dimension)
	if err != nil {
		return nil, out.Fail("failed to load dimension", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, out.Fail("failed to open database", err)
	}
	log.Debug("database ready", "path", opts.Database, "dimension", schema.Name)

	return &env{schema: schema, store: st, log: log, out: out}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("error closing database", "error", err)
	}
	e.log.Sync()
}

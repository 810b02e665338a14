package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/dimension"
	"github.com/roach88/scd2/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Seed bool
}

// InitResult is the outcome of init.
type InitResult struct {
	Dimension string `json:"dimension"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Seeded    int    `json:"seeded"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the source and history tables of a dimension",
		Long: `Create the source and history tables of a dimension, and the run ledger.
Existing tables are left untouched, so init is safe to repeat.

With --seed the sales dimension's source table is loaded with the sample
rows (existing rows with the same ids are replaced).

Examples:
  scd2 init --db ./sales.db
  scd2 init --db ./sales.db --seed
  scd2 init --dimensions ./dims --dimension products`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "load the sample sales rows into the source table")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if err := e.store.Bootstrap(ctx, e.schema); err != nil {
		return e.out.Fail("failed to create tables", err)
	}
	e.log.Info("tables ready", "dimension", e.schema.Name, "source", e.schema.Source, "target", e.schema.Target)

	result := InitResult{Dimension: e.schema.Name, Source: e.schema.Source, Target: e.schema.Target}
	if opts.Seed {
		if e.schema.Name != dimension.DefaultName {
			return e.out.Fail("failed to seed",
				fmt.Errorf("sample rows exist only for the %s dimension", dimension.DefaultName))
		}
		rows := store.SampleSales()
		if err := e.store.UpsertSource(ctx, e.schema, rows); err != nil {
			return e.out.Fail("failed to seed", err)
		}
		result.Seeded = len(rows)
		e.log.Info("sample rows loaded", "rows", len(rows))
	}

	return e.out.Render(result, func(w io.Writer) error {
		fmt.Fprintf(w, "Initialized %s: %s -> %s\n", result.Dimension, result.Source, result.Target)
		if result.Seeded > 0 {
			fmt.Fprintf(w, "Seeded %d sample rows into %s\n", result.Seeded, result.Source)
		}
		return nil
	})
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List committed runs of a dimension",
		Long: `List the run ledger of a dimension, newest first. Only runs that wrote
versions are recorded; runs with nothing to do leave no entry.

Example:
  scd2 runs --db ./sales.db --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 lists all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	runs, err := e.store.Runs(cmd.Context(), e.schema.Name, opts.Limit)
	if err != nil {
		return e.out.Fail("failed to read run ledger", err)
	}

	return e.out.Render(runs, func(w io.Writer) error {
		return writeRuns(w, e.schema.Name, runs)
	})
}

func writeRuns(w io.Writer, dimension string, runs []store.RunEntry) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintf(w, "%s: no runs recorded\n", dimension)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTAMP\tINSERTED\tEXPIRED\tUNCHANGED\tSKIPPED\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Seq, r.Stamp, r.Inserted, r.Expired, r.Unchanged, r.Skipped, r.RunID)
	}
	return tw.Flush()
}

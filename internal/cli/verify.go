package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/report"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Recent int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report how the history table differs from the source table",
		Long: `Print the verification report of a dimension without changing anything:
row counts, source rows with no history yet, rows whose active version is
out of date (with per-column differences), invalid source rows, the most
recent versions and the ids that already have history.

Examples:
  scd2 verify --db ./sales.db
  scd2 verify --db ./sales.db --recent 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Recent, "recent", report.DefaultRecent, "number of recent versions to list")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	rep, err := report.Build(cmd.Context(), e.store, e.schema, report.Options{Recent: opts.Recent})
	if err != nil {
		return e.out.Fail("verification failed", err)
	}
	e.log.Debug("report built", "new", len(rep.New), "updated", len(rep.Updated), "needs_action", rep.NeedsAction)

	return e.out.Render(rep, rep.WriteText)
}

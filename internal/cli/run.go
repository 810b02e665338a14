package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	OnInvalid string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile the history table with the source table",
		Long: `Run one reconciliation of a dimension.

Every source row is compared with the active version of its id. New ids get
a first version, changed rows close their active version and open a new one
at the same timestamp, unchanged rows are left alone. The run commits
everything or nothing; a run with no changes writes nothing.

Rows that fail the dimension's column rules are skipped and reported
(--on-invalid skip, the default) or fail the run (--on-invalid abort).

Exit codes:
  0 - Run committed, or nothing to do
  1 - Run failed and was rolled back
  2 - Command error (missing tables, bad flags)

Examples:
  scd2 run --db ./sales.db
  scd2 run --db ./sales.db --on-invalid abort --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OnInvalid, "on-invalid", "skip", "invalid source row policy (skip|abort)")

	return cmd
}

func runReconcile(opts *RunOptions, cmd *cobra.Command) error {
	policy, err := engine.ParsePolicy(opts.OnInvalid)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --on-invalid", err)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	applierOpts := []engine.Option{engine.WithLogger(e.log), engine.WithPolicy(policy)}
	if opts.Clock != nil {
		applierOpts = append(applierOpts, engine.WithClock(opts.Clock))
	}
	if opts.RunIDs != nil {
		applierOpts = append(applierOpts, engine.WithRunIDs(opts.RunIDs))
	}
	applier := engine.NewApplier(e.store, applierOpts...)

	// An interrupt cancels the run; the transaction rolls back.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := applier.Apply(ctx, e.schema)
	if err != nil {
		if ctx.Err() == context.Canceled {
			e.log.Warn("run interrupted")
		}
		return e.out.Fail("run failed", err)
	}

	return e.out.Render(summary, func(w io.Writer) error {
		fmt.Fprintln(w, summary.String())
		if opts.Verbose {
			for _, id := range summary.New {
				fmt.Fprintf(w, "  + %d new\n", id)
			}
			for _, id := range summary.Changed {
				fmt.Fprintf(w, "  ~ %d changed\n", id)
			}
		}
		for _, s := range summary.Skipped {
			fmt.Fprintf(w, "  ! %d skipped: %s: %s\n", s.ID, s.Column, s.Reason)
		}
		if summary.Untracked > 0 {
			fmt.Fprintf(w, "  %d active ids no longer in %s\n", summary.Untracked, e.schema.Source)
		}
		return nil
	})
}

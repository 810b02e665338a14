package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/report"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	ID int64
}

// HistoryVersion is one version in history output.
type HistoryVersion struct {
	ValidFrom   string         `json:"valid_from"`
	ValidTo     string         `json:"valid_to"`
	Active      bool           `json:"active"`
	Fingerprint string         `json:"fingerprint"`
	Attrs       map[string]any `json:"attrs"`
}

// HistoryResult is every version of one id.
type HistoryResult struct {
	Dimension string           `json:"dimension"`
	ID        int64            `json:"id"`
	Versions  []HistoryVersion `json:"versions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every version of one id",
		Long: `Show every recorded version of one id, oldest first, with its validity
interval and attributes.

Example:
  scd2 history --db ./sales.db --id 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ID, "id", 0, "natural key to show (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	versions, err := e.store.History(cmd.Context(), e.schema, opts.ID)
	if err != nil {
		return e.out.Fail("failed to read history", err)
	}

	result := HistoryResult{Dimension: e.schema.Name, ID: opts.ID, Versions: make([]HistoryVersion, 0, len(versions))}
	for _, v := range versions {
		attrs := make(map[string]any, len(e.schema.Columns))
		for i, c := range e.schema.Columns {
			attrs[c.Name] = record.Plain(v.Attrs[i])
		}
		result.Versions = append(result.Versions, HistoryVersion{
			ValidFrom:   v.ValidFrom,
			ValidTo:     v.ValidTo,
			Active:      v.IsActive,
			Fingerprint: v.Fingerprint,
			Attrs:       attrs,
		})
	}

	return e.out.Render(result, func(w io.Writer) error {
		return writeHistory(w, e.schema, opts.ID, versions)
	})
}

func writeHistory(w io.Writer, schema record.Schema, id int64, versions []record.VersionRecord) error {
	if len(versions) == 0 {
		_, err := fmt.Fprintf(w, "%s: no versions of id %d\n", schema.Name, id)
		return err
	}

	fmt.Fprintf(w, "%s id %d: %d versions\n", schema.Name, id, len(versions))
	for i, v := range versions {
		state := "expired"
		if v.IsActive {
			state = "active"
		}
		fmt.Fprintf(w, "\n#%d %s  %s .. %s\n", i+1, state, v.ValidFrom, v.ValidTo)

		pairs := make([]string, len(schema.Columns))
		for j, c := range schema.Columns {
			pairs[j] = fmt.Sprintf("%s=%s", c.Name, record.Format(v.Attrs[j]))
		}
		fmt.Fprintf(w, "   %s\n", strings.Join(pairs, ", "))
		if i > 0 {
			for _, d := range report.Diff(schema, versions[i-1].Attrs, v.Attrs) {
				fmt.Fprintf(w, "   changed %s: %s -> %s\n", d.Column, d.Old, d.New)
			}
		}
	}
	return nil
}

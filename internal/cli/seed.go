package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scd2/internal/harness"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

// SeedFile is the YAML layout read by seed.
//
//	rows:
//	  - {id: 1, product_name: Laptop, price: 1499.99, ...}
//	delete: [3, 4]
type SeedFile struct {
	Rows   []map[string]any `yaml:"rows"`
	Delete []int64          `yaml:"delete"`
}

// SeedResult is the outcome of seed.
type SeedResult struct {
	Dimension string `json:"dimension"`
	Upserted  int    `json:"upserted"`
	Deleted   int64  `json:"deleted"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply source row changes from a YAML file",
		Long: `Insert, replace or delete rows of a dimension's source table.

The file lists rows under "rows" (each with an integer id; a row whose id
exists replaces it) and ids to remove under "delete". Values are typed by
the dimension's columns. Nothing is written if any row is invalid.

Example:
  scd2 seed --db ./sales.db --file changes.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML file of source rows (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// LoadSeedFile reads and strictly decodes a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(f.Rows) == 0 && len(f.Delete) == 0 {
		return nil, fmt.Errorf("seed file %s has no rows and no deletes", path)
	}
	return &f, nil
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	file, err := LoadSeedFile(opts.File)
	if err != nil {
		return out.Fail("invalid seed file", err)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	rows, err := harness.DecodeRows(e.schema, file.Rows)
	if err != nil {
		return e.out.Fail("invalid seed file", err)
	}

	ctx := cmd.Context()
	if err := e.store.UpsertSource(ctx, e.schema, rows); err != nil {
		return e.out.Fail("failed to write source rows", err)
	}
	deleted, err := e.store.DeleteSource(ctx, e.schema, file.Delete)
	if err != nil {
		return e.out.Fail("failed to delete source rows", err)
	}
	e.log.Info("source rows written", "dimension", e.schema.Name, "upserted", len(rows), "deleted", deleted)

	result := SeedResult{Dimension: e.schema.Name, Upserted: len(rows), Deleted: deleted}
	return e.out.Render(result, func(w io.Writer) error {
		fmt.Fprintf(w, "%s: %d rows upserted, %d deleted\n", result.Dimension, result.Upserted, result.Deleted)
		return nil
	})
}

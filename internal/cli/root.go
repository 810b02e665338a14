package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogMode    string // "dev" | "prod"
	Database   string
	Dimensions string // directory of CUE dimension definitions; empty uses the built-in ones
	Dimension  string

	// Logger overrides the logger built from LogMode and Verbose (for testing).
	Logger *logger.Logger

	// Clock and RunIDs override the wall clock and UUIDv7 run ids (for testing).
	Clock  engine.Clock
	RunIDs engine.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultDatabase is the database path when --db is not given.
const DefaultDatabase = "scd2.db"

// NewRootCommand creates the root command for the scd2 CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scd2",
		Short: "Slowly changing dimension history tracker",
		Long: `scd2 keeps a Type 2 slowly changing dimension history in step with a
current-state source table. Each run compares every source row with the
active version of its id, closes versions whose attributes changed and
opens new ones, all in one transaction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogMode, "log-mode", "dev", "log encoding (dev|prod)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Dimensions, "dimensions", "", "directory of CUE dimension definitions (default: built-in)")
	cmd.PersistentFlags().StringVar(&opts.Dimension, "dimension", "", "dimension to operate on (default: sales)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Command scd2 maintains Type 2 slowly changing dimension history in SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scd2/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/logger"
	"github.com/roach88/scd2/internal/testutil"
)

// testOptions returns root options over a fresh database with a frozen
// clock and predictable run ids.
func testOptions(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:   "text",
		Database: filepath.Join(t.TempDir(), "test.db"),
		Logger:   logger.Nop(),
		Clock:    testutil.NewFixedClock(testutil.Epoch),
		RunIDs:   engine.NewFixedGenerator("run-1", "run-2", "run-3", "run-4"),
	}
}

// execute runs one subcommand built from opts and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) string {
	t.Helper()
	out, err := execute(t, newCmd, opts, args...)
	require.NoError(t, err, "output: %s", out)
	return out
}

// seeded returns options over a database initialized with the sample rows.
func seeded(t *testing.T) *RootOptions {
	t.Helper()
	opts := testOptions(t)
	mustExecute(t, NewInitCommand, opts, "--seed")
	return opts
}

// writeSeedFile writes a seed YAML file and returns its path.
func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// decodeResponse parses a JSON envelope, decoding Data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

const priceChange = `
rows:
  - id: 1
    transaction_date: "2024-01-15"
    product_name: Laptop
    category: Electronics
    price: 1400.00
    quantity: 1
    total_amount: 1400.00
    customer_id: 1001
    region: North
    status: Active
`

package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/dimension"
	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/report"
	"github.com/roach88/scd2/internal/store"
)

// insertRaw writes a source row the typed seed path would reject.
func insertRaw(t *testing.T, opts *RootOptions, query string) {
	t.Helper()
	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.DB().ExecContext(context.Background(), query)
	require.NoError(t, err)
}

func TestInit(t *testing.T) {
	opts := testOptions(t)

	out := mustExecute(t, NewInitCommand, opts)
	assert.Equal(t, "Initialized sales: sales_records_current -> sales_records_cdc\n", out)

	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()
	for _, table := range []string{"sales_records_current", "sales_records_cdc"} {
		ok, err := st.TableExists(context.Background(), table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}

	// Repeating init leaves existing tables alone.
	mustExecute(t, NewInitCommand, opts)
}

func TestInit_Seed(t *testing.T) {
	opts := testOptions(t)
	opts.Format = "json"

	out := mustExecute(t, NewInitCommand, opts, "--seed")
	var result InitResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, result.Seeded)

	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()
	schema, err := dimension.Resolve("", "")
	require.NoError(t, err)
	rows, err := st.SourceRows(context.Background(), schema)
	require.NoError(t, err)
	assert.Len(t, rows, 7)
}

func TestInit_SeedOtherDimension(t *testing.T) {
	opts := testOptions(t)
	opts.Dimensions = "../harness/testdata/dims"
	opts.Dimension = "products"

	_, err := execute(t, NewInitCommand, opts, "--seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample rows exist only for the sales dimension")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInit_UnknownDimension(t *testing.T) {
	opts := testOptions(t)
	opts.Dimension = "inventory"

	_, err := execute(t, NewInitCommand, opts)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, dimension.ErrCodeUnknown, ErrorCode(err))
}

func TestSeed(t *testing.T) {
	opts := seeded(t)
	path := writeSeedFile(t, priceChange+`
  - {id: 99, transaction_date: "2024-02-01", product_name: Test Product, price: 10.0, quantity: 1}
delete: [7, 1234]
`)

	out := mustExecute(t, NewSeedCommand, opts, "--file", path)
	assert.Equal(t, "sales: 2 rows upserted, 1 deleted\n", out)
}

func TestSeed_MissingFileFlag(t *testing.T) {
	_, err := execute(t, NewSeedCommand, testOptions(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "file")
}

func TestSeed_InvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "row:\n  - {id: 1}\n", "failed to parse seed file"},
		{"empty", "rows: []\n", "no rows and no deletes"},
		{"unknown column", "rows:\n  - {id: 1, colour: red}\n", "unknown column"},
		{"missing id", "rows:\n  - {product_name: Pen}\n", "id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := seeded(t)
			_, err := execute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRun_Lifecycle(t *testing.T) {
	opts := seeded(t)

	out := mustExecute(t, NewRunCommand, opts)
	assert.Equal(t, "sales: run 1 at 2024-03-01 10:00:00.000000: 7 inserted, 0 expired, 0 unchanged, 0 skipped\n", out)

	out = mustExecute(t, NewRunCommand, opts)
	assert.Equal(t, "sales: no changes (7 unchanged, 0 skipped)\n", out)

	mustExecute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, priceChange))

	// The frozen clock forces the second writing run one microsecond later.
	out = mustExecute(t, NewRunCommand, opts)
	assert.Equal(t, "sales: run 2 at 2024-03-01 10:00:00.000001: 1 inserted, 1 expired, 6 unchanged, 0 skipped\n", out)
}

func TestRun_VerboseListsIDs(t *testing.T) {
	opts := seeded(t)
	opts.Verbose = true
	mustExecute(t, NewRunCommand, opts)
	mustExecute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, priceChange+`
  - {id: 99, transaction_date: "2024-02-01", product_name: Test Product, price: 10.0, quantity: 1}
`))

	out := mustExecute(t, NewRunCommand, opts)
	assert.Contains(t, out, "  + 99 new\n")
	assert.Contains(t, out, "  ~ 1 changed\n")
}

func TestRun_JSON(t *testing.T) {
	opts := seeded(t)
	opts.Format = "json"

	out := mustExecute(t, NewRunCommand, opts)
	var summary engine.Summary
	resp := decodeResponse(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, int64(1), summary.Seq)
	assert.Equal(t, 7, summary.Inserted)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, summary.New)
}

func TestRun_SkipsInvalidRows(t *testing.T) {
	opts := seeded(t)
	insertRaw(t, opts, `INSERT INTO sales_records_current (id, transaction_date, product_name, price, quantity)
		VALUES (8, '2024-01-22', NULL, 5, 1)`)

	out := mustExecute(t, NewRunCommand, opts)
	assert.Contains(t, out, "7 inserted")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "  ! 8 skipped: product_name: required value is NULL\n")
}

func TestRun_AbortOnInvalidRow(t *testing.T) {
	opts := seeded(t)
	opts.Format = "json"
	insertRaw(t, opts, `INSERT INTO sales_records_current (id, transaction_date, product_name, price, quantity)
		VALUES (8, '2024-01-22', NULL, 5, 1)`)

	out, err := execute(t, NewRunCommand, opts, "--on-invalid", "abort")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsInvalidInput(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, map[string]any{"id": float64(8)}, resp.Error.Details)

	// Nothing was written.
	opts.Format = "text"
	assert.Equal(t, "sales: no runs recorded\n", mustExecute(t, NewRunsCommand, opts))
}

func TestRun_InvalidPolicy(t *testing.T) {
	_, err := execute(t, NewRunCommand, testOptions(t), "--on-invalid", "ignore")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --on-invalid")
}

func TestRun_MissingTables(t *testing.T) {
	_, err := execute(t, NewRunCommand, testOptions(t))
	require.Error(t, err)
	assert.True(t, engine.IsMissingRelation(err))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerify(t *testing.T) {
	opts := seeded(t)
	mustExecute(t, NewRunCommand, opts)
	mustExecute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, priceChange))

	out := mustExecute(t, NewVerifyCommand, opts)
	assert.Contains(t, out, "SCD2 VERIFICATION REPORT: sales")
	assert.Contains(t, out, "Updated records (fingerprint mismatch): 1")
	assert.Contains(t, out, "ID 1: Laptop")
	assert.Contains(t, out, "price: 1299.99 -> 1400")
	assert.Contains(t, out, "Synchronized records: 6")
	assert.Contains(t, out, "1 record(s) need processing:")

	mustExecute(t, NewRunCommand, opts)
	out = mustExecute(t, NewVerifyCommand, opts)
	assert.Contains(t, out, "All records are synchronized. No action required.")
}

func TestVerify_JSON(t *testing.T) {
	opts := seeded(t)
	opts.Format = "json"

	out := mustExecute(t, NewVerifyCommand, opts, "--recent", "2")
	var rep report.Report
	resp := decodeResponse(t, out, &rep)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sales", rep.Dimension)
	assert.Equal(t, 7, rep.Stats.Source)
	assert.Len(t, rep.New, 7)
	assert.Equal(t, 7, rep.NeedsAction)
	assert.Empty(t, rep.Recent)
}

func TestVerify_MissingTables(t *testing.T) {
	_, err := execute(t, NewVerifyCommand, testOptions(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory(t *testing.T) {
	opts := seeded(t)
	mustExecute(t, NewRunCommand, opts)
	mustExecute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, priceChange))
	mustExecute(t, NewRunCommand, opts)

	out := mustExecute(t, NewHistoryCommand, opts, "--id", "1")
	assert.Contains(t, out, "sales id 1: 2 versions\n")
	assert.Contains(t, out, "#1 expired  2024-03-01 10:00:00.000000 .. 2024-03-01 10:00:00.000001\n")
	assert.Contains(t, out, "#2 active  2024-03-01 10:00:00.000001 .. 9999-12-31 23:59:59.999999\n")
	assert.Contains(t, out, "   changed price: 1299.99 -> 1400\n")
	assert.Contains(t, out, "   changed total_amount: 1299.99 -> 1400\n")

	opts.Format = "json"
	out = mustExecute(t, NewHistoryCommand, opts, "--id", "1")
	var result HistoryResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Versions, 2)
	assert.False(t, result.Versions[0].Active)
	assert.True(t, result.Versions[1].Active)
	assert.Equal(t, "1400", result.Versions[1].Attrs["price"])
	assert.Len(t, result.Versions[1].Fingerprint, 64)
}

func TestHistory_UnknownID(t *testing.T) {
	opts := seeded(t)
	out := mustExecute(t, NewHistoryCommand, opts, "--id", "42")
	assert.Equal(t, "sales: no versions of id 42\n", out)
}

func TestHistory_RequiresID(t *testing.T) {
	_, err := execute(t, NewHistoryCommand, testOptions(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}

func TestRuns(t *testing.T) {
	opts := seeded(t)
	mustExecute(t, NewRunCommand, opts)
	mustExecute(t, NewRunCommand, opts) // no-op, not recorded
	mustExecute(t, NewSeedCommand, opts, "--file", writeSeedFile(t, priceChange))
	mustExecute(t, NewRunCommand, opts)

	out := mustExecute(t, NewRunsCommand, opts)
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
	assert.NotContains(t, out, "run-3")

	opts.Format = "json"
	out = mustExecute(t, NewRunsCommand, opts, "--limit", "1")
	var runs []store.RunEntry
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].Seq)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Inserted)
	assert.Equal(t, 1, runs[0].Expired)
	assert.Equal(t, 6, runs[0].Unchanged)
}

// Package harness runs YAML reconciliation scenarios against a fresh
// database: source mutations and runs execute in order through the real
// store and engine, then assertions check the final history.
//
// Scenarios run under a frozen clock and fixed run ids, so the final state
// is deterministic and can be compared against golden files.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/roach88/scd2/internal/dimension"
	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/logger"
	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// Harness is the scenario execution environment.
type Harness struct {
	store   *store.Store
	schema  record.Schema
	applier *engine.Applier
}

// Option configures Run.
type Option func(*options)

type options struct {
	log *logger.Logger
}

// WithLogger routes engine logs to l. Default discards.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database in a temporary directory.
//
// Execution flow:
// 1. Resolve the dimension and bootstrap its tables
// 2. Execute steps, checking each run's expectations
// 3. Snapshot the final target relation
// 4. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	schema, err := dimension.Resolve(scenario.Dimensions, scenario.Dimension)
	if err != nil {
		return nil, fmt.Errorf("resolve dimension: %w", err)
	}
	clock, err := scenario.clock()
	if err != nil {
		return nil, err
	}
	policy, err := engine.ParsePolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "scd2-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Bootstrap(ctx, schema); err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		schema: schema,
		applier: engine.NewApplier(st,
			engine.WithClock(frozenClock{t: clock}),
			engine.WithPolicy(policy),
			engine.WithRunIDs(&sequentialIDs{prefix: scenario.Name}),
			engine.WithLogger(o.log),
		),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	versions, err := st.AllVersions(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("snapshot versions: %w", err)
	}
	for _, v := range versions {
		result.Versions = append(result.Versions, snapshot(schema, v))
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a, versions); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	switch {
	case step.Seed:
		if h.schema.Name != dimension.DefaultName {
			return fmt.Errorf("seed is only available for the %s dimension", dimension.DefaultName)
		}
		return h.store.UpsertSource(ctx, h.schema, store.SampleSales())

	case step.Upsert != nil:
		rows, err := DecodeRows(h.schema, step.Upsert)
		if err != nil {
			return err
		}
		return h.store.UpsertSource(ctx, h.schema, rows)

	case step.Delete != nil:
		_, err := h.store.DeleteSource(ctx, h.schema, step.Delete)
		return err

	case step.SQL != "":
		_, err := h.store.DB().ExecContext(ctx, step.SQL)
		return err

	case step.Run != nil:
		outcome := h.executeRun(ctx, index, step.Run, result)
		result.Runs = append(result.Runs, outcome)
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) executeRun(ctx context.Context, index int, step *RunStep, result *Result) RunOutcome {
	outcome := RunOutcome{Step: index, New: []int64{}, Changed: []int64{}, Skipped: []int64{}}

	summary, err := h.applier.Apply(ctx, h.schema)
	if err != nil {
		var re *engine.RunError
		if errors.As(err, &re) {
			outcome.Error = string(re.Code)
		} else {
			outcome.Error = err.Error()
		}
	} else {
		outcome.Seq = summary.Seq
		outcome.Stamp = summary.Stamp
		outcome.Inserted = summary.Inserted
		outcome.Expired = summary.Expired
		outcome.Unchanged = summary.Unchanged
		outcome.Untracked = summary.Untracked
		outcome.New = summary.New
		outcome.Changed = summary.Changed
		for _, s := range summary.Skipped {
			outcome.Skipped = append(outcome.Skipped, s.ID)
		}
	}

	if step.Expect != nil {
		for _, msg := range checkRun(step.Expect, outcome, summary) {
			result.AddError(fmt.Sprintf("steps[%d] run: %s", index, msg))
		}
	} else if outcome.Error != "" {
		result.AddError(fmt.Sprintf("steps[%d] run: unexpected error: %v", index, err))
	}
	return outcome
}

func checkRun(want *RunExpect, got RunOutcome, summary *engine.Summary) []string {
	var errs []string

	if want.Error != "" || got.Error != "" {
		if want.Error != got.Error {
			errs = append(errs, fmt.Sprintf("error: expected %q, got %q", want.Error, got.Error))
		}
		return errs
	}

	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, fmt.Sprintf("%s: expected %d, got %d", name, *want, got))
		}
	}
	checkIDs := func(name string, want, got []int64) {
		if want != nil && !equalIDs(want, got) {
			errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", name, want, got))
		}
	}

	checkInt("inserted", want.Inserted, got.Inserted)
	checkInt("expired", want.Expired, got.Expired)
	checkInt("unchanged", want.Unchanged, got.Unchanged)
	checkInt("untracked", want.Untracked, got.Untracked)
	checkIDs("new", want.New, got.New)
	checkIDs("changed", want.Changed, got.Changed)
	checkIDs("skipped", want.Skipped, got.Skipped)

	if want.Wrote != nil && *want.Wrote != summary.Wrote() {
		errs = append(errs, fmt.Sprintf("wrote: expected %t, got %t", *want.Wrote, summary.Wrote()))
	}
	return errs
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DecodeRows converts YAML rows, each carrying an integer "id", into source
// records typed by schema.
func DecodeRows(schema record.Schema, rows []map[string]any) ([]record.SourceRecord, error) {
	out := make([]record.SourceRecord, 0, len(rows))
	for _, row := range rows {
		id, err := rowID(row)
		if err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(row))
		for k, v := range row {
			if k != "id" {
				fields[k] = v
			}
		}
		rec, err := schema.DecodeMap(id, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func snapshot(schema record.Schema, v record.VersionRecord) VersionSnapshot {
	attrs := make(map[string]any, len(schema.Columns))
	for i, c := range schema.Columns {
		attrs[c.Name] = record.Plain(v.Attrs[i])
	}
	return VersionSnapshot{
		ID:        v.ID,
		ValidFrom: v.ValidFrom,
		ValidTo:   v.ValidTo,
		Active:    v.IsActive,
		Attrs:     attrs,
	}
}

// frozenClock returns the same instant on every call.
type frozenClock struct {
	t time.Time
}

func (c frozenClock) Now() time.Time { return c.t }

// sequentialIDs issues "<prefix>-1", "<prefix>-2", ...
type sequentialIDs struct {
	prefix string
	n      int
}

func (g *sequentialIDs) Generate() string {
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}

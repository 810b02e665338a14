package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/record"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

// evaluate checks one assertion against the final state.
// versions is the full target relation ordered by id, valid_from.
func (h *Harness) evaluate(ctx context.Context, a Assertion, versions []record.VersionRecord) error {
	switch a.Type {
	case AssertVersions:
		return assertVersionCount(versions, a)
	case AssertActive:
		return assertActive(h.schema, versions, a)
	case AssertTotal:
		if len(versions) != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d versions", a.Count), Actual: fmt.Sprintf("%d", len(versions))}
		}
		return nil
	case AssertRuns:
		runs, err := h.store.Runs(ctx, h.schema.Name, 0)
		if err != nil {
			return err
		}
		if len(runs) != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d ledger runs", a.Count), Actual: fmt.Sprintf("%d", len(runs))}
		}
		return nil
	case AssertOneActive:
		return assertOneActive(versions)
	case AssertClosure:
		return assertClosure(versions)
	case AssertConverged:
		return h.assertConverged(ctx, versions)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertVersionCount(versions []record.VersionRecord, a Assertion) error {
	n := 0
	for _, v := range versions {
		if v.ID == a.ID {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d versions of id %d", a.Count, a.ID),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func activeOf(versions []record.VersionRecord, id int64) (record.VersionRecord, bool) {
	for _, v := range versions {
		if v.ID == id && v.IsActive {
			return v, true
		}
	}
	return record.VersionRecord{}, false
}

// assertActive compares the listed columns of id's active version.
// Expected values are decoded with the column's kind, so 1400 matches
// 1400.00 for a numeric column.
func assertActive(schema record.Schema, versions []record.VersionRecord, a Assertion) error {
	v, ok := activeOf(versions, a.ID)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("an active version of id %d", a.ID), Actual: "none"}
	}

	columns := make([]string, 0, len(a.Expect))
	for c := range a.Expect {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var mismatches []string
	for _, col := range columns {
		idx := schema.Index(col)
		if idx < 0 {
			return fmt.Errorf("unknown column %q", col)
		}
		want, err := record.Decode(schema.Columns[idx].Kind, a.Expect[col])
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		if !record.Equal(want, v.Attrs[idx]) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%s (want %s)", col, record.Format(v.Attrs[idx]), record.Format(want)))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("id %d to match", a.ID),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

func assertOneActive(versions []record.VersionRecord) error {
	active := map[int64]int{}
	for _, v := range versions {
		if _, ok := active[v.ID]; !ok {
			active[v.ID] = 0
		}
		if v.IsActive {
			active[v.ID]++
		}
	}
	for _, id := range sortedKeys(active) {
		if active[id] != 1 {
			return &AssertionError{
				Type:     AssertOneActive,
				Expected: fmt.Sprintf("exactly one active version of id %d", id),
				Actual:   fmt.Sprintf("%d", active[id]),
			}
		}
	}
	return nil
}

// assertClosure checks each id's chain: versions are ordered by valid_from,
// every version but the last is closed, and each closed version's valid_to
// equals its successor's valid_from.
func assertClosure(versions []record.VersionRecord) error {
	for i, v := range versions {
		last := i+1 == len(versions) || versions[i+1].ID != v.ID
		if last {
			continue
		}
		next := versions[i+1]
		if v.IsActive {
			return &AssertionError{Type: AssertClosure, Expected: fmt.Sprintf("id %d@%s closed", v.ID, v.ValidFrom), Actual: "active"}
		}
		if v.ValidTo != next.ValidFrom {
			return &AssertionError{
				Type:     AssertClosure,
				Expected: fmt.Sprintf("id %d@%s to end at %s", v.ID, v.ValidFrom, next.ValidFrom),
				Actual:   v.ValidTo,
			}
		}
	}
	return nil
}

func (h *Harness) assertConverged(ctx context.Context, versions []record.VersionRecord) error {
	rows, err := h.store.SourceRows(ctx, h.schema)
	if err != nil {
		return err
	}
	source, _, err := engine.DecodeSource(h.schema, rows, engine.PolicySkip)
	if err != nil {
		return err
	}

	for _, src := range source {
		v, ok := activeOf(versions, src.ID)
		if !ok {
			return &AssertionError{Type: AssertConverged, Expected: fmt.Sprintf("an active version of id %d", src.ID), Actual: "none"}
		}
		fp, err := record.Fingerprint(src.Attrs)
		if err != nil {
			return err
		}
		if fp != v.Fingerprint {
			return &AssertionError{Type: AssertConverged, Expected: fmt.Sprintf("id %d to match its source row", src.ID), Actual: "fingerprint mismatch"}
		}
	}
	return nil
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

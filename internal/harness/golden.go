package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scd2/internal/record"
)

// Snapshot renders a result as canonical JSON: the run outcomes and the
// final target relation. Fingerprints are left out; the attributes they
// cover are already in the snapshot.
func Snapshot(name string, result *Result) ([]byte, error) {
	runs := make([]any, len(result.Runs))
	for i, r := range result.Runs {
		m := map[string]any{
			"step":      r.Step,
			"seq":       r.Seq,
			"inserted":  r.Inserted,
			"expired":   r.Expired,
			"unchanged": r.Unchanged,
			"untracked": r.Untracked,
			"new":       r.New,
			"changed":   r.Changed,
			"skipped":   r.Skipped,
		}
		if r.Stamp != "" {
			m["stamp"] = r.Stamp
		}
		if r.Error != "" {
			m["error"] = r.Error
		}
		runs[i] = m
	}

	versions := make([]any, len(result.Versions))
	for i, v := range result.Versions {
		versions[i] = map[string]any{
			"id":         v.ID,
			"valid_from": v.ValidFrom,
			"valid_to":   v.ValidTo,
			"active":     v.Active,
			"attrs":      v.Attrs,
		}
	}

	return record.MarshalCanonical(map[string]any{
		"scenario": name,
		"runs":     runs,
		"versions": versions,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reconciliation test scenario: a sequence of source
// mutations and runs, followed by assertions on the resulting history.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dimensions is a directory of CUE dimension definitions, relative to the
	// scenario file. Empty uses the built-in definitions.
	Dimensions string `yaml:"dimensions,omitempty"`

	// Dimension selects the dimension under test. Empty uses the default.
	Dimension string `yaml:"dimension,omitempty"`

	// Clock freezes the run clock (RFC 3339). Empty uses 2024-03-01T10:00:00Z.
	// Every run in a scenario sees the same wall clock, so stamps advance
	// only through the stamp floor.
	Clock string `yaml:"clock,omitempty"`

	// Policy is the invalid-row policy for every run: "skip" (default) or "abort".
	Policy string `yaml:"policy,omitempty"`

	// Steps run in order against a fresh database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Seed loads the built-in sample rows (sales dimension only).
	Seed bool `yaml:"seed,omitempty"`

	// Upsert inserts or replaces source rows. Each row needs an "id".
	Upsert []map[string]any `yaml:"upsert,omitempty"`

	// Delete removes source rows by id.
	Delete []int64 `yaml:"delete,omitempty"`

	// SQL executes a raw statement, for rows the typed upsert would reject.
	SQL string `yaml:"sql,omitempty"`

	// Run executes one reconciliation run.
	Run *RunStep `yaml:"run,omitempty"`
}

// RunStep is a reconciliation run with optional expectations.
type RunStep struct {
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// RunExpect lists the expected run outcome. Unset fields are not checked.
type RunExpect struct {
	Inserted  *int    `yaml:"inserted,omitempty"`
	Expired   *int    `yaml:"expired,omitempty"`
	Unchanged *int    `yaml:"unchanged,omitempty"`
	Untracked *int    `yaml:"untracked,omitempty"`
	New       []int64 `yaml:"new,omitempty"`
	Changed   []int64 `yaml:"changed,omitempty"`
	Skipped   []int64 `yaml:"skipped,omitempty"`

	// Wrote false expects a no-op run.
	Wrote *bool `yaml:"wrote,omitempty"`

	// Error is the expected RunError code; the run must fail with it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "versions": id has exactly Count versions
	// - "active": id's active version has the Expect attribute values
	// - "total": the target holds exactly Count versions
	// - "runs": the ledger holds exactly Count runs for the dimension
	// - "one_active": every id in the target has exactly one active version
	// - "closure": every expired version ends where its successor starts
	// - "converged": every valid source row matches its active version
	Type string `yaml:"type"`

	// ID is the natural key (used by versions, active).
	ID int64 `yaml:"id,omitempty"`

	// Count is the expected number (used by versions, total, runs).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected attribute values (used by active).
	// Subset match - only specified columns are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertVersions  = "versions"
	AssertActive    = "active"
	AssertTotal     = "total"
	AssertRuns      = "runs"
	AssertOneActive = "one_active"
	AssertClosure   = "closure"
	AssertConverged = "converged"
)

// DefaultClock is the frozen run clock when a scenario sets none.
var DefaultClock = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative dimensions path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Dimensions != "" && !filepath.IsAbs(scenario.Dimensions) {
		scenario.Dimensions = filepath.Join(filepath.Dir(path), scenario.Dimensions)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// clock returns the scenario's frozen run time.
func (s *Scenario) clock() (time.Time, error) {
	if s.Clock == "" {
		return DefaultClock, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.Clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: %w", err)
	}
	return t, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if _, err := s.clock(); err != nil {
		return err
	}

	switch s.Policy {
	case "", "skip", "abort":
	default:
		return fmt.Errorf("policy must be skip or abort, got %q", s.Policy)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	if step.Seed {
		set++
	}
	if step.Upsert != nil {
		set++
	}
	if step.Delete != nil {
		set++
	}
	if step.SQL != "" {
		set++
	}
	if step.Run != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of seed, upsert, delete, sql, run is required", index)
	}

	for j, row := range step.Upsert {
		if _, err := rowID(row); err != nil {
			return fmt.Errorf("steps[%d].upsert[%d]: %w", index, j, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertVersions:
		if a.ID == 0 {
			return fmt.Errorf("assertions[%d]: id is required for versions", index)
		}
	case AssertActive:
		if a.ID == 0 {
			return fmt.Errorf("assertions[%d]: id is required for active", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for active", index)
		}
	case AssertTotal, AssertRuns, AssertOneActive, AssertClosure, AssertConverged:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// rowID extracts the natural key of an upsert row.
func rowID(row map[string]any) (int64, error) {
	raw, ok := row["id"]
	if !ok {
		return 0, fmt.Errorf("id is required")
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("id must be an integer, got %T", raw)
	}
}

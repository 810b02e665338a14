package harness

// RunOutcome is the observable result of one run step.
type RunOutcome struct {
	Step      int     `json:"step"`
	Seq       int64   `json:"seq"`
	Stamp     string  `json:"stamp,omitempty"`
	Inserted  int     `json:"inserted"`
	Expired   int     `json:"expired"`
	Unchanged int     `json:"unchanged"`
	Untracked int     `json:"untracked"`
	New       []int64 `json:"new"`
	Changed   []int64 `json:"changed"`
	Skipped   []int64 `json:"skipped"`
	Error     string  `json:"error,omitempty"`
}

// VersionSnapshot is one target row in the final state.
type VersionSnapshot struct {
	ID        int64          `json:"id"`
	ValidFrom string         `json:"valid_from"`
	ValidTo   string         `json:"valid_to"`
	Active    bool           `json:"active"`
	Attrs     map[string]any `json:"attrs"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all run expectations and assertions hold.
	Pass bool `json:"pass"`

	// Runs holds one entry per run step, in order.
	Runs []RunOutcome `json:"runs"`

	// Versions is the final target relation ordered by id, valid_from.
	Versions []VersionSnapshot `json:"versions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Runs:     []RunOutcome{},
		Versions: []VersionSnapshot{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

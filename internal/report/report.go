// Package report builds the read-only verification report for a dimension:
// what a reconciliation run would do right now, and what history exists.
//
// Classification reuses engine.Reconcile so the report and the applier can
// never disagree about which rows are new or changed. Nothing here writes.
package report

import (
	"context"

	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// DefaultRecent is the number of recent versions shown by default.
const DefaultRecent = 5

// Options configures Build.
type Options struct {
	// Recent is the number of most recent versions to list. <= 0 uses DefaultRecent.
	Recent int
}

// Stats counts rows in the source and target relations.
type Stats struct {
	Source     int `json:"source"`
	Active     int `json:"active"`
	Historical int `json:"historical"`
	Total      int `json:"total"`
}

// NewRecord is a source row with no active version yet.
type NewRecord struct {
	ID     int64          `json:"id"`
	Label  string         `json:"label,omitempty"`
	Values map[string]any `json:"values"`
}

// FieldDiff is one column whose source value differs from the active version.
type FieldDiff struct {
	Column string `json:"column"`
	Old    string `json:"old"`
	New    string `json:"new"`
}

// UpdatedRecord is a source row whose fingerprint differs from its active
// version, with the columns that differ.
type UpdatedRecord struct {
	ID    int64       `json:"id"`
	Label string      `json:"label,omitempty"`
	Diffs []FieldDiff `json:"diffs"`
}

// RecentChange is one of the most recently stamped versions.
type RecentChange struct {
	ID        int64  `json:"id"`
	Label     string `json:"label,omitempty"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
	Active    bool   `json:"active"`
	Versions  int    `json:"versions"`
}

// Report is the verification report of one dimension.
type Report struct {
	Dimension    string               `json:"dimension"`
	Stats        Stats                `json:"stats"`
	New          []NewRecord          `json:"new"`
	Updated      []UpdatedRecord      `json:"updated"`
	Synchronized int                  `json:"synchronized"`
	Invalid      []engine.SkippedRow  `json:"invalid"`
	Untracked    []int64              `json:"untracked"`
	Recent       []RecentChange       `json:"recent"`
	WithHistory  []store.VersionCount `json:"with_history"`
	NeedsAction  int                  `json:"needs_action"`
}

// Build reads both relations and assembles the report.
func Build(ctx context.Context, s *store.Store, schema record.Schema, opts Options) (*Report, error) {
	if opts.Recent <= 0 {
		opts.Recent = DefaultRecent
	}

	rows, err := s.SourceRows(ctx, schema)
	if err != nil {
		return nil, err
	}
	active, err := s.ActiveVersions(ctx, schema)
	if err != nil {
		return nil, err
	}

	source, invalid, err := engine.DecodeSource(schema, rows, engine.PolicySkip)
	if err != nil {
		return nil, err
	}
	plan, err := engine.Reconcile(source, active)
	if err != nil {
		return nil, err
	}

	nActive, nHistorical, err := s.CountVersions(ctx, schema)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentVersions(ctx, schema, opts.Recent)
	if err != nil {
		return nil, err
	}
	multi, err := s.MultiVersionIDs(ctx, schema)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Dimension: schema.Name,
		Stats: Stats{
			Source:     len(rows),
			Active:     nActive,
			Historical: nHistorical,
			Total:      nActive + nHistorical,
		},
		New:          []NewRecord{},
		Updated:      []UpdatedRecord{},
		Synchronized: len(plan.Unchanged),
		Invalid:      invalid,
		Untracked:    untracked(plan.Untracked, invalid),
		Recent:       []RecentChange{},
		WithHistory:  multi,
		NeedsAction:  len(plan.New) + len(plan.Changed),
	}
	if r.Invalid == nil {
		r.Invalid = []engine.SkippedRow{}
	}

	for _, n := range plan.New {
		values := make(map[string]any, len(schema.Columns))
		for i, c := range schema.Columns {
			values[c.Name] = record.Plain(n.Source.Attrs[i])
		}
		r.New = append(r.New, NewRecord{ID: n.Source.ID, Label: label(schema, n.Source.Attrs), Values: values})
	}
	for _, c := range plan.Changed {
		r.Updated = append(r.Updated, UpdatedRecord{
			ID:    c.Source.ID,
			Label: label(schema, c.Source.Attrs),
			Diffs: Diff(schema, c.Previous.Attrs, c.Source.Attrs),
		})
	}
	for _, rv := range recent {
		r.Recent = append(r.Recent, RecentChange{
			ID:        rv.Version.ID,
			Label:     label(schema, rv.Version.Attrs),
			ValidFrom: rv.Version.ValidFrom,
			ValidTo:   rv.Version.ValidTo,
			Active:    rv.Version.IsActive,
			Versions:  rv.VersionCount,
		})
	}
	return r, nil
}

// Diff lists the columns whose values differ between two attribute tuples.
func Diff(schema record.Schema, old, cur []record.Value) []FieldDiff {
	diffs := []FieldDiff{}
	for i, c := range schema.Columns {
		if i >= len(old) || i >= len(cur) {
			break
		}
		if !record.Equal(old[i], cur[i]) {
			diffs = append(diffs, FieldDiff{
				Column: c.Name,
				Old:    record.Format(old[i]),
				New:    record.Format(cur[i]),
			})
		}
	}
	return diffs
}

func label(schema record.Schema, attrs []record.Value) string {
	i := schema.LabelIndex()
	if i < 0 || i >= len(attrs) {
		return ""
	}
	if _, isNull := attrs[i].(record.Null); isNull {
		return ""
	}
	return record.Format(attrs[i])
}

// untracked drops ids whose source row exists but failed to decode.
func untracked(ids []int64, invalid []engine.SkippedRow) []int64 {
	skip := make(map[int64]bool, len(invalid))
	for _, s := range invalid {
		skip[s.ID] = true
	}
	out := []int64{}
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

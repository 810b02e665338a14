package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/scd2/internal/record"
)

// Insert is a version to add: a source row and its fingerprint.
type Insert struct {
	Source      record.SourceRecord
	Fingerprint string
}

// Change is a source row whose fingerprint differs from its active version.
// Previous is closed and Source is inserted as the replacement.
type Change struct {
	Insert
	Previous record.VersionRecord
}

// Plan is the classification of every id seen in a run.
// All lists are sorted by id.
type Plan struct {
	New       []Insert
	Changed   []Change
	Unchanged []int64

	// Untracked ids have an active version but no source row.
	// They are reported only; deletions are not tracked.
	Untracked []int64
}

// Empty reports whether the plan requires no writes.
func (p *Plan) Empty() bool {
	return len(p.New) == 0 && len(p.Changed) == 0
}

// Reconcile classifies source records against active versions.
//
// Classification compares fingerprints only: a source row is Changed iff its
// fingerprint differs from the stored fingerprint of its active version.
// Stored fingerprints are trusted, not recomputed.
//
// Duplicate ids on either side violate the one-row-per-id contract and are
// rejected: INVALID_INPUT for the source, KEY_COLLISION for the target.
func Reconcile(source []record.SourceRecord, active []record.VersionRecord) (*Plan, error) {
	current := make(map[int64]record.VersionRecord, len(active))
	for _, v := range active {
		if _, dup := current[v.ID]; dup {
			return nil, &RunError{
				Code:    ErrCodeKeyCollision,
				Message: "more than one active version",
				ID:      v.ID,
			}
		}
		current[v.ID] = v
	}

	plan := &Plan{}
	seen := make(map[int64]bool, len(source))
	for _, src := range source {
		if seen[src.ID] {
			return nil, &RunError{
				Code:    ErrCodeInvalidInput,
				Message: "duplicate id in source",
				ID:      src.ID,
			}
		}
		seen[src.ID] = true

		fp, err := record.Fingerprint(src.Attrs)
		if err != nil {
			return nil, invalidInput(src.ID, fmt.Errorf("fingerprint: %w", err))
		}

		prev, ok := current[src.ID]
		switch {
		case !ok:
			plan.New = append(plan.New, Insert{Source: src, Fingerprint: fp})
		case prev.Fingerprint != fp:
			plan.Changed = append(plan.Changed, Change{
				Insert:   Insert{Source: src, Fingerprint: fp},
				Previous: prev,
			})
		default:
			plan.Unchanged = append(plan.Unchanged, src.ID)
		}
	}

	for id := range current {
		if !seen[id] {
			plan.Untracked = append(plan.Untracked, id)
		}
	}

	plan.sort()
	return plan, nil
}

func (p *Plan) sort() {
	sort.Slice(p.New, func(i, j int) bool { return p.New[i].Source.ID < p.New[j].Source.ID })
	sort.Slice(p.Changed, func(i, j int) bool { return p.Changed[i].Source.ID < p.Changed[j].Source.ID })
	sort.Slice(p.Unchanged, func(i, j int) bool { return p.Unchanged[i] < p.Unchanged[j] })
	sort.Slice(p.Untracked, func(i, j int) bool { return p.Untracked[i] < p.Untracked[j] })
}

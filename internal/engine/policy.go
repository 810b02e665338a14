package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// InvalidRowPolicy decides what a run does with malformed source rows.
// It is fixed for the whole run, never per row.
type InvalidRowPolicy int

const (
	// PolicySkip excludes malformed rows from classification, logs a
	// warning per row and reports them in the Summary. Their existing
	// history is left untouched.
	PolicySkip InvalidRowPolicy = iota

	// PolicyAbort fails the run with INVALID_INPUT before any write.
	PolicyAbort
)

func (p InvalidRowPolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicyAbort:
		return "abort"
	default:
		return fmt.Sprintf("InvalidRowPolicy(%d)", int(p))
	}
}

// ParsePolicy parses "skip" or "abort".
func ParsePolicy(s string) (InvalidRowPolicy, error) {
	switch s {
	case "skip", "":
		return PolicySkip, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicySkip, fmt.Errorf("invalid row policy %q (valid: skip, abort)", s)
	}
}

// SkippedRow is a source row excluded from a run under PolicySkip.
type SkippedRow struct {
	ID     int64  `json:"id"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// DecodeSource decodes raw source rows, applying the policy to failures.
// Under PolicySkip the error is always nil.
func DecodeSource(schema record.Schema, rows []store.SourceRow, policy InvalidRowPolicy) ([]record.SourceRecord, []SkippedRow, error) {
	out := make([]record.SourceRecord, 0, len(rows))
	var skipped []SkippedRow

	for _, row := range rows {
		rec, err := schema.DecodeRow(row.ID, row.Values)
		if err == nil {
			out = append(out, rec)
			continue
		}
		if policy == PolicyAbort {
			return nil, nil, invalidInput(row.ID, err)
		}

		s := SkippedRow{ID: row.ID, Reason: err.Error()}
		var fe *record.FieldError
		if errors.As(err, &fe) {
			s.Column = fe.Column
			s.Reason = fe.Reason
		}
		skipped = append(skipped, s)
	}
	return out, skipped, nil
}

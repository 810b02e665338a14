package store

import (
	"context"
	"fmt"
)

// RunEntry is one row of the scd_runs ledger.
type RunEntry struct {
	RunID      string `json:"run_id"`
	Dimension  string `json:"dimension"`
	Seq        int64  `json:"seq"`
	Stamp      string `json:"stamp"`
	Inserted   int    `json:"inserted"`
	Expired    int    `json:"expired"`
	Unchanged  int    `json:"unchanged"`
	Skipped    int    `json:"skipped"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// Runs returns ledger entries for a dimension, newest first.
// limit <= 0 returns all entries.
func (s *Store) Runs(ctx context.Context, dimension string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, dimension, seq, stamp, inserted, expired, unchanged, skipped, started_at, finished_at
		FROM scd_runs
		WHERE dimension = ?
		ORDER BY seq DESC
		LIMIT ?
	`, dimension, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []RunEntry{}
	for rows.Next() {
		var r RunEntry
		if err := rows.Scan(
			&r.RunID, &r.Dimension, &r.Seq, &r.Stamp, &r.Inserted, &r.Expired,
			&r.Unchanged, &r.Skipped, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

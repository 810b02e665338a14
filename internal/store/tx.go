package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/scd2/internal/record"
)

// Tx is one reconciliation run's unit of work. Every read and write of the
// run goes through the same immediate transaction; nothing is visible to
// other connections until Commit.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a run transaction (BEGIN IMMEDIATE).
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit makes the run's writes visible.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the run's writes. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// ReadSource returns all source rows ordered by id.
// Returns a MissingTableError if either relation is absent.
func (t *Tx) ReadSource(ctx context.Context, schema record.Schema) ([]SourceRow, error) {
	if err := requireTables(ctx, t.tx, schema); err != nil {
		return nil, err
	}
	return readSource(ctx, t.tx, schema)
}

// ReadActive returns the active version of every id, ordered by id.
func (t *Tx) ReadActive(ctx context.Context, schema record.Schema) ([]record.VersionRecord, error) {
	if err := requireTables(ctx, t.tx, schema); err != nil {
		return nil, err
	}
	return readActive(ctx, t.tx, schema)
}

// StampFloor returns the greatest stamp already used by this dimension:
// the maximum valid_from in the target or the last ledger stamp, whichever
// is later. Returns "" for a dimension that has never been written.
func (t *Tx) StampFloor(ctx context.Context, schema record.Schema) (string, error) {
	var target, ledger sql.NullString

	err := t.tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT MAX(valid_from) FROM %s", quoteIdent(schema.Target),
	)).Scan(&target)
	if err != nil {
		return "", fmt.Errorf("stamp floor: target: %w", err)
	}

	err = t.tx.QueryRowContext(ctx,
		"SELECT MAX(stamp) FROM scd_runs WHERE dimension = ?", schema.Name,
	).Scan(&ledger)
	if err != nil {
		return "", fmt.Errorf("stamp floor: ledger: %w", err)
	}

	floor := target.String
	if ledger.String > floor {
		floor = ledger.String
	}
	return floor, nil
}

// ExpireVersion closes the active version (id, validFrom) at validTo.
// Returns ErrStaleVersion if that version is not currently active.
func (t *Tx) ExpireVersion(ctx context.Context, schema record.Schema, id int64, validFrom, validTo string) error {
	res, err := t.tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET valid_to = ?, is_active = 0 WHERE id = ? AND valid_from = ? AND is_active = 1",
		quoteIdent(schema.Target),
	), validTo, id, validFrom)
	if err != nil {
		return fmt.Errorf("expire version %d@%s: %w", id, validFrom, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("expire version %d@%s: rows affected: %w", id, validFrom, err)
	}
	if n == 0 {
		return fmt.Errorf("expire version %d@%s: %w", id, validFrom, ErrStaleVersion)
	}
	return nil
}

// InsertVersion appends a version. A duplicate (id, valid_from) or a second
// active version surfaces as a key conflict (see IsKeyConflict).
func (t *Tx) InsertVersion(ctx context.Context, schema record.Schema, v record.VersionRecord) error {
	if len(v.Attrs) != len(schema.Columns) {
		return fmt.Errorf("insert version %d: expected %d attributes, got %d", v.ID, len(schema.Columns), len(v.Attrs))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.Columns)+5), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (id, %s, fingerprint, valid_from, valid_to, is_active) VALUES (%s)",
		quoteIdent(schema.Target), columnList(schema), placeholders,
	)

	args := make([]any, 0, len(schema.Columns)+5)
	args = append(args, v.ID)
	for _, a := range v.Attrs {
		args = append(args, record.SQLArg(a))
	}
	active := 0
	if v.IsActive {
		active = 1
	}
	args = append(args, v.Fingerprint, v.ValidFrom, v.ValidTo, active)

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert version %d@%s: %w", v.ID, v.ValidFrom, err)
	}
	return nil
}

// RecordRun appends a ledger entry and returns its per-dimension sequence.
func (t *Tx) RecordRun(ctx context.Context, run RunEntry) (int64, error) {
	var seq int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM scd_runs WHERE dimension = ?", run.Dimension,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("record run: next seq: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO scd_runs
		(run_id, dimension, seq, stamp, inserted, expired, unchanged, skipped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Dimension,
		seq,
		run.Stamp,
		run.Inserted,
		run.Expired,
		run.Unchanged,
		run.Skipped,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return seq, nil
}

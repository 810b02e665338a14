package engine

import (
	"context"
	"fmt"

	"github.com/roach88/scd2/internal/logger"
	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// Tx is the unit of work a run executes in. *store.Tx implements it.
type Tx interface {
	ReadSource(ctx context.Context, schema record.Schema) ([]store.SourceRow, error)
	ReadActive(ctx context.Context, schema record.Schema) ([]record.VersionRecord, error)
	StampFloor(ctx context.Context, schema record.Schema) (string, error)
	ExpireVersion(ctx context.Context, schema record.Schema, id int64, validFrom, validTo string) error
	InsertVersion(ctx context.Context, schema record.Schema, v record.VersionRecord) error
	RecordRun(ctx context.Context, run store.RunEntry) (int64, error)
	Commit() error
	Rollback() error
}

// Backend opens run transactions.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
}

type storeBackend struct {
	s *store.Store
}

func (b storeBackend) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Summary describes a completed run.
type Summary struct {
	RunID     string `json:"run_id,omitempty"`
	Dimension string `json:"dimension"`

	// Seq is the ledger sequence of the run, 0 when nothing was written.
	Seq   int64  `json:"seq"`
	Stamp string `json:"stamp,omitempty"`

	Inserted  int `json:"inserted"`
	Expired   int `json:"expired"`
	Unchanged int `json:"unchanged"`
	Untracked int `json:"untracked"`

	New     []int64      `json:"new"`
	Changed []int64      `json:"changed"`
	Skipped []SkippedRow `json:"skipped"`
}

// Wrote reports whether the run committed any version.
func (s *Summary) Wrote() bool {
	return s.Inserted > 0
}

// Applier executes reconciliation runs.
//
// Thread-safety: an Applier holds no per-run state and may be reused, but
// runs against the same database are serialized by the store.
type Applier struct {
	backend Backend
	stamper *Stamper
	log     *logger.Logger
	policy  InvalidRowPolicy
	runIDs  IDGenerator
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger. Default discards.
func WithLogger(l *logger.Logger) Option {
	return func(a *Applier) { a.log = l }
}

// WithClock sets the clock run stamps are drawn from. Default SystemClock.
func WithClock(c Clock) Option {
	return func(a *Applier) { a.stamper = NewStamper(c) }
}

// WithPolicy sets the invalid-row policy. Default PolicySkip.
func WithPolicy(p InvalidRowPolicy) Option {
	return func(a *Applier) { a.policy = p }
}

// WithRunIDs sets the run id generator. Default UUIDv7Generator.
func WithRunIDs(g IDGenerator) Option {
	return func(a *Applier) { a.runIDs = g }
}

// NewApplier creates an Applier over a store.
func NewApplier(s *store.Store, opts ...Option) *Applier {
	return NewApplierWithBackend(storeBackend{s: s}, opts...)
}

// NewApplierWithBackend creates an Applier over any Backend.
func NewApplierWithBackend(b Backend, opts ...Option) *Applier {
	a := &Applier{
		backend: b,
		stamper: NewStamper(SystemClock{}),
		log:     logger.Nop(),
		policy:  PolicySkip,
		runIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply runs one reconciliation of schema's source into its target.
//
// All reads and writes share one transaction. On any error the transaction
// is rolled back and the returned error is a *RunError; both relations are
// exactly as they were before the call.
func (a *Applier) Apply(ctx context.Context, schema record.Schema) (*Summary, error) {
	log := a.log.With("dimension", schema.Name)
	started := a.stamper.Now()

	tx, err := a.backend.Begin(ctx)
	if err != nil {
		return nil, storeError("begin run", 0, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	rows, err := tx.ReadSource(ctx, schema)
	if err != nil {
		return nil, storeError("read source", 0, err)
	}
	active, err := tx.ReadActive(ctx, schema)
	if err != nil {
		return nil, storeError("read active versions", 0, err)
	}

	source, skipped, err := DecodeSource(schema, rows, a.policy)
	if err != nil {
		log.Error("run aborted on invalid source row", "error", err)
		return nil, err
	}
	for _, s := range skipped {
		log.Warn("skipping invalid source row", "id", s.ID, "column", s.Column, "reason", s.Reason)
	}

	plan, err := Reconcile(source, active)
	if err != nil {
		return nil, err
	}

	summary := newSummary(schema, plan, skipped)
	if plan.Empty() {
		log.Info("no changes", "unchanged", summary.Unchanged, "skipped", len(skipped))
		return summary, nil
	}

	floor, err := tx.StampFloor(ctx, schema)
	if err != nil {
		return nil, storeError("read stamp floor", 0, err)
	}
	stamp, err := NextStamp(started, floor)
	if err != nil {
		return nil, &RunError{Code: ErrCodeStorageFailure, Message: "issue run stamp", Err: err}
	}
	log.Debug("run stamp issued", "stamp", stamp, "floor", floor)

	for _, c := range plan.Changed {
		if err := tx.ExpireVersion(ctx, schema, c.Previous.ID, c.Previous.ValidFrom, stamp); err != nil {
			return nil, storeError("expire version", c.Previous.ID, err)
		}
	}
	for _, ins := range inserts(plan) {
		v := record.VersionRecord{
			ID:          ins.Source.ID,
			Attrs:       ins.Source.Attrs,
			Fingerprint: ins.Fingerprint,
			ValidFrom:   stamp,
			ValidTo:     record.ValidToOpen,
			IsActive:    true,
		}
		if err := tx.InsertVersion(ctx, schema, v); err != nil {
			return nil, storeError("insert version", v.ID, err)
		}
	}

	summary.RunID = a.runIDs.Generate()
	summary.Stamp = stamp
	seq, err := tx.RecordRun(ctx, store.RunEntry{
		RunID:      summary.RunID,
		Dimension:  schema.Name,
		Stamp:      stamp,
		Inserted:   summary.Inserted,
		Expired:    summary.Expired,
		Unchanged:  summary.Unchanged,
		Skipped:    len(skipped),
		StartedAt:  record.FormatStamp(started),
		FinishedAt: record.FormatStamp(a.stamper.Now()),
	})
	if err != nil {
		return nil, storeError("record run", 0, err)
	}
	summary.Seq = seq

	if err := tx.Commit(); err != nil {
		return nil, storeError("commit run", 0, err)
	}
	committed = true

	log.Info("run committed",
		"run_id", summary.RunID,
		"seq", seq,
		"stamp", stamp,
		"inserted", summary.Inserted,
		"expired", summary.Expired,
		"unchanged", summary.Unchanged,
		"skipped", len(skipped),
	)
	return summary, nil
}

// inserts returns every version to insert, New and Changed merged by id.
func inserts(plan *Plan) []Insert {
	out := make([]Insert, 0, len(plan.New)+len(plan.Changed))
	i, j := 0, 0
	for i < len(plan.New) || j < len(plan.Changed) {
		if j >= len(plan.Changed) || (i < len(plan.New) && plan.New[i].Source.ID < plan.Changed[j].Source.ID) {
			out = append(out, plan.New[i])
			i++
		} else {
			out = append(out, plan.Changed[j].Insert)
			j++
		}
	}
	return out
}

func newSummary(schema record.Schema, plan *Plan, skipped []SkippedRow) *Summary {
	s := &Summary{
		Dimension: schema.Name,
		Inserted:  len(plan.New) + len(plan.Changed),
		Expired:   len(plan.Changed),
		Unchanged: len(plan.Unchanged),
		New:       make([]int64, 0, len(plan.New)),
		Changed:   make([]int64, 0, len(plan.Changed)),
		Skipped:   skipped,
	}
	if s.Skipped == nil {
		s.Skipped = []SkippedRow{}
	}

	// A skipped row's id is missing from the decoded source but still has
	// a source row, so it is not untracked.
	skippedIDs := make(map[int64]bool, len(skipped))
	for _, sk := range skipped {
		skippedIDs[sk.ID] = true
	}
	for _, id := range plan.Untracked {
		if !skippedIDs[id] {
			s.Untracked++
		}
	}
	for _, n := range plan.New {
		s.New = append(s.New, n.Source.ID)
	}
	for _, c := range plan.Changed {
		s.Changed = append(s.Changed, c.Source.ID)
	}
	return s
}

// String renders a one-line summary.
func (s *Summary) String() string {
	if !s.Wrote() {
		return fmt.Sprintf("%s: no changes (%d unchanged, %d skipped)", s.Dimension, s.Unchanged, len(s.Skipped))
	}
	return fmt.Sprintf("%s: run %d at %s: %d inserted, %d expired, %d unchanged, %d skipped",
		s.Dimension, s.Seq, s.Stamp, s.Inserted, s.Expired, s.Unchanged, len(s.Skipped))
}

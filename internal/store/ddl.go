package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/scd2/internal/record"
)

// quoteIdent quotes an identifier. Names are validated by record.Schema
// before they reach SQL; quoting keeps keywords like "status" safe.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(kind record.Kind) string {
	switch kind {
	case record.KindInteger:
		return "INTEGER"
	case record.KindNumeric:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Bootstrap creates the source and target relations of a dimension.
// Existing tables are left untouched.
//
// The source declares no NOT NULL constraints: upstream producers own it
// and malformed rows are handled by the run's invalid-row policy.
func (s *Store) Bootstrap(ctx context.Context, schema record.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range bootstrapStatements(schema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap %s: %w", schema.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bootstrap: commit: %w", err)
	}
	return nil
}

func bootstrapStatements(schema record.Schema) []string {
	var src strings.Builder
	fmt.Fprintf(&src, "CREATE TABLE IF NOT EXISTS %s (\n    id INTEGER PRIMARY KEY", quoteIdent(schema.Source))
	for _, c := range schema.Columns {
		fmt.Fprintf(&src, ",\n    %s %s", quoteIdent(c.Name), sqlType(c.Kind))
	}
	src.WriteString("\n)")

	var tgt strings.Builder
	fmt.Fprintf(&tgt, "CREATE TABLE IF NOT EXISTS %s (\n    id INTEGER NOT NULL", quoteIdent(schema.Target))
	for _, c := range schema.Columns {
		notNull := ""
		if c.Required {
			notNull = " NOT NULL"
		}
		fmt.Fprintf(&tgt, ",\n    %s %s%s", quoteIdent(c.Name), sqlType(c.Kind), notNull)
	}
	fmt.Fprintf(&tgt, ",\n    fingerprint TEXT NOT NULL CHECK (length(fingerprint) = %d)", record.FingerprintLen)
	tgt.WriteString(",\n    valid_from TEXT NOT NULL")
	tgt.WriteString(",\n    valid_to TEXT NOT NULL")
	tgt.WriteString(",\n    is_active INTEGER NOT NULL CHECK (is_active IN (0, 1))")
	tgt.WriteString(",\n    PRIMARY KEY (id, valid_from)\n)")

	activeIdx := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(id) WHERE is_active = 1",
		quoteIdent("ux_"+schema.Target+"_active"), quoteIdent(schema.Target),
	)

	return []string{src.String(), tgt.String(), activeIdx}
}

// TableExists reports whether a table is present.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	return tableExists(ctx, s.db, table)
}

func tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// requireTables returns a MissingTableError for the first absent relation.
func requireTables(ctx context.Context, q queryer, schema record.Schema) error {
	for _, table := range []string{schema.Source, schema.Target} {
		ok, err := tableExists(ctx, q, table)
		if err != nil {
			return err
		}
		if !ok {
			return &MissingTableError{Table: table}
		}
	}
	return nil
}

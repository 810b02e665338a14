package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/scd2/internal/record"
)

// SourceRow is an undecoded source row. Values are raw driver values in
// schema column order; decoding and validation belong to the caller so that
// malformed rows can be reported instead of failing the whole read.
type SourceRow struct {
	ID     int64
	Values []any
}

// RecentVersion is a version plus the total number of versions of its id.
type RecentVersion struct {
	Version      record.VersionRecord
	VersionCount int
}

// VersionCount is the number of versions recorded for one id.
type VersionCount struct {
	ID       int64 `json:"id"`
	Versions int   `json:"versions"`
}

func columnList(schema record.Schema) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = quoteIdent(c.Name)
	}
	return strings.Join(cols, ", ")
}

func versionSelect(schema record.Schema) string {
	return fmt.Sprintf(
		"SELECT id, %s, fingerprint, valid_from, valid_to, is_active FROM %s",
		columnList(schema), quoteIdent(schema.Target),
	)
}

// readSource returns all source rows ordered by id.
func readSource(ctx context.Context, q queryer, schema record.Schema) ([]SourceRow, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, %s FROM %s ORDER BY id ASC",
		columnList(schema), quoteIdent(schema.Source),
	))
	if err != nil {
		return nil, fmt.Errorf("query source %s: %w", schema.Source, err)
	}
	defer rows.Close()

	n := len(schema.Columns)
	out := []SourceRow{}
	for rows.Next() {
		row := SourceRow{Values: make([]any, n)}
		dest := make([]any, n+1)
		dest[0] = &row.ID
		for i := range row.Values {
			dest[i+1] = &row.Values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}
	return out, nil
}

// readVersions runs a version query and decodes every row.
func readVersions(ctx context.Context, q queryer, schema record.Schema, query string, args ...any) ([]record.VersionRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query target %s: %w", schema.Target, err)
	}
	defer rows.Close()

	out := []record.VersionRecord{}
	for rows.Next() {
		v, err := scanVersion(rows, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner, schema record.Schema, extra ...any) (record.VersionRecord, error) {
	var v record.VersionRecord
	var active int64
	n := len(schema.Columns)
	raw := make([]any, n)

	dest := make([]any, 0, n+5+len(extra))
	dest = append(dest, &v.ID)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &v.Fingerprint, &v.ValidFrom, &v.ValidTo, &active)
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return v, fmt.Errorf("scan version row: %w", err)
	}

	v.IsActive = active == 1
	v.Attrs = make([]record.Value, n)
	for i, c := range schema.Columns {
		val, err := record.Decode(c.Kind, raw[i])
		if err != nil {
			return v, fmt.Errorf("decode version %d@%s column %s: %w", v.ID, v.ValidFrom, c.Name, err)
		}
		v.Attrs[i] = val
	}
	return v, nil
}

// readActive returns the active version of every id, ordered by id.
func readActive(ctx context.Context, q queryer, schema record.Schema) ([]record.VersionRecord, error) {
	return readVersions(ctx, q, schema, versionSelect(schema)+" WHERE is_active = 1 ORDER BY id ASC")
}

// CheckRelations returns a MissingTableError if either relation is absent.
func (s *Store) CheckRelations(ctx context.Context, schema record.Schema) error {
	return requireTables(ctx, s.db, schema)
}

// SourceRows returns all source rows ordered by id.
func (s *Store) SourceRows(ctx context.Context, schema record.Schema) ([]SourceRow, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}
	return readSource(ctx, s.db, schema)
}

// ActiveVersions returns the active version of every id, ordered by id.
func (s *Store) ActiveVersions(ctx context.Context, schema record.Schema) ([]record.VersionRecord, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}
	return readActive(ctx, s.db, schema)
}

// AllVersions returns every version ordered by id, then valid_from.
func (s *Store) AllVersions(ctx context.Context, schema record.Schema) ([]record.VersionRecord, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}
	return readVersions(ctx, s.db, schema, versionSelect(schema)+" ORDER BY id ASC, valid_from ASC")
}

// History returns all versions of one id in valid_from order.
// Returns an empty slice (not nil) if the id was never seen.
func (s *Store) History(ctx context.Context, schema record.Schema, id int64) ([]record.VersionRecord, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}
	return readVersions(ctx, s.db, schema, versionSelect(schema)+" WHERE id = ? ORDER BY valid_from ASC", id)
}

// RecentVersions returns the most recently started versions, newest first,
// each with the total version count of its id.
func (s *Store) RecentVersions(ctx context.Context, schema record.Schema, limit int) ([]RecentVersion, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT c1.id, %s, c1.fingerprint, c1.valid_from, c1.valid_to, c1.is_active,
		        (SELECT COUNT(*) FROM %s c2 WHERE c2.id = c1.id)
		 FROM %s c1
		 ORDER BY c1.valid_from DESC, c1.id ASC
		 LIMIT ?`,
		prefixedColumns("c1", schema), quoteIdent(schema.Target), quoteIdent(schema.Target),
	)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent versions: %w", err)
	}
	defer rows.Close()

	out := []RecentVersion{}
	for rows.Next() {
		var rv RecentVersion
		v, err := scanVersion(rows, schema, &rv.VersionCount)
		if err != nil {
			return nil, err
		}
		rv.Version = v
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent versions: %w", err)
	}
	return out, nil
}

func prefixedColumns(alias string, schema record.Schema) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = alias + "." + quoteIdent(c.Name)
	}
	return strings.Join(cols, ", ")
}

// MultiVersionIDs returns ids with more than one version, most versions first.
func (s *Store) MultiVersionIDs(ctx context.Context, schema record.Schema) ([]VersionCount, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, COUNT(*) AS versions FROM %s
		 GROUP BY id HAVING COUNT(*) > 1
		 ORDER BY versions DESC, id ASC`,
		quoteIdent(schema.Target),
	))
	if err != nil {
		return nil, fmt.Errorf("query version counts: %w", err)
	}
	defer rows.Close()

	out := []VersionCount{}
	for rows.Next() {
		var vc VersionCount
		if err := rows.Scan(&vc.ID, &vc.Versions); err != nil {
			return nil, fmt.Errorf("scan version count: %w", err)
		}
		out = append(out, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate version counts: %w", err)
	}
	return out, nil
}

// CountVersions returns the number of active and historical versions.
func (s *Store) CountVersions(ctx context.Context, schema record.Schema) (active, historical int, err error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return 0, 0, err
	}

	var a, h sql.NullInt64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT SUM(is_active = 1), SUM(is_active = 0) FROM %s", quoteIdent(schema.Target),
	)).Scan(&a, &h)
	if err != nil {
		return 0, 0, fmt.Errorf("count versions: %w", err)
	}
	return int(a.Int64), int(h.Int64), nil
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/record"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func productSchema() record.Schema {
	return record.Schema{
		Name:   "products",
		Source: "products_current",
		Target: "products_history",
		Columns: []record.Column{
			{Name: "name", Kind: record.KindText, Required: true},
			{Name: "price", Kind: record.KindNumeric, Required: true},
			{Name: "stock", Kind: record.KindInteger},
		},
	}
}

// bootstrapped returns a store with the product tables created.
func bootstrapped(t *testing.T) (*Store, record.Schema) {
	t.Helper()
	s := createTestStore(t)
	schema := productSchema()
	require.NoError(t, s.Bootstrap(context.Background(), schema))
	return s, schema
}

func product(id int64, name, price string, stock int64) record.SourceRecord {
	return record.SourceRecord{
		ID:    id,
		Attrs: []record.Value{record.Text(name), record.MustNumeric(price), record.Int(stock)},
	}
}

func version(src record.SourceRecord, validFrom string) record.VersionRecord {
	return record.VersionRecord{
		ID:          src.ID,
		Attrs:       src.Attrs,
		Fingerprint: record.MustFingerprint(src.Attrs),
		ValidFrom:   validFrom,
		ValidTo:     record.ValidToOpen,
		IsActive:    true,
	}
}

// withTx runs fn in a run transaction and commits it.
func withTx(t *testing.T, s *Store, fn func(tx *Tx)) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx)
	require.NoError(t, tx.Commit())
}

const (
	stamp1 = "2024-03-01 10:00:00.000000"
	stamp2 = "2024-03-01 10:00:00.000001"
	stamp3 = "2024-03-02 08:30:00.000000"
)

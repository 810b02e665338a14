package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
)

// OpenStore creates a file-backed store in a temp dir, closed on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "scd2.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// BootstrapStore opens a store and creates the relations of schema.
func BootstrapStore(t *testing.T, schema record.Schema) *store.Store {
	t.Helper()

	s := OpenStore(t)
	if err := s.Bootstrap(context.Background(), schema); err != nil {
		t.Fatalf("bootstrap %s: %v", schema.Name, err)
	}
	return s
}

// ProductSchema is a small three-column dimension for tests.
func ProductSchema() record.Schema {
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

// Product builds a ProductSchema source record.
func Product(id int64, name, price string, stock int64) record.SourceRecord {
	return record.SourceRecord{
		ID:    id,
		Attrs: []record.Value{record.Text(name), record.MustNumeric(price), record.Int(stock)},
	}
}

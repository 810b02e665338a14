package report

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/record"
	"github.com/roach88/scd2/internal/store"
	"github.com/roach88/scd2/internal/testutil"
)

func upsert(t *testing.T, s *store.Store, schema record.Schema, rows ...record.SourceRecord) {
	t.Helper()
	require.NoError(t, s.UpsertSource(context.Background(), schema, rows))
}

func run(t *testing.T, s *store.Store, schema record.Schema) {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.Epoch)
	_, err := engine.NewApplier(s, engine.WithClock(clock)).Apply(context.Background(), schema)
	require.NoError(t, err)
}

// pendingState leaves the products dimension with one new, one updated,
// one synchronized, one untracked and one invalid id.
func pendingState(t *testing.T) (*store.Store, record.Schema) {
	t.Helper()
	schema := testutil.ProductSchema()
	s := testutil.BootstrapStore(t, schema)
	ctx := context.Background()

	upsert(t, s, schema,
		testutil.Product(1, "Laptop", "1299.99", 3),
		testutil.Product(2, "Mouse", "19.5", 40),
		testutil.Product(3, "Desk", "350", 1),
	)
	run(t, s, schema)
	upsert(t, s, schema, testutil.Product(1, "Laptop", "1499.99", 3))
	run(t, s, schema)

	upsert(t, s, schema,
		testutil.Product(2, "Mouse", "17.25", 38),
		testutil.Product(4, "Lamp", "34.75", 4),
	)
	_, err := s.DeleteSource(ctx, schema, []int64{3})
	require.NoError(t, err)
	_, err = s.DB().Exec("INSERT INTO products_current (id, name, price, stock) VALUES (5, NULL, 5, 1)")
	require.NoError(t, err)

	return s, schema
}

func TestBuild_Pending(t *testing.T) {
	s, schema := pendingState(t)

	r, err := Build(context.Background(), s, schema, Options{})
	require.NoError(t, err)

	assert.Equal(t, Stats{Source: 4, Active: 3, Historical: 1, Total: 4}, r.Stats)

	require.Len(t, r.New, 1)
	assert.Equal(t, int64(4), r.New[0].ID)
	assert.Equal(t, "Lamp", r.New[0].Label)
	assert.Equal(t, "34.75", r.New[0].Values["price"])
	assert.Equal(t, int64(4), r.New[0].Values["stock"])

	require.Len(t, r.Updated, 1)
	assert.Equal(t, []FieldDiff{
		{Column: "price", Old: "19.5", New: "17.25"},
		{Column: "stock", Old: "40", New: "38"},
	}, r.Updated[0].Diffs)

	assert.Equal(t, 1, r.Synchronized)
	assert.Equal(t, []int64{3}, r.Untracked)
	require.Len(t, r.Invalid, 1)
	assert.Equal(t, int64(5), r.Invalid[0].ID)
	assert.Equal(t, []store.VersionCount{{ID: 1, Versions: 2}}, r.WithHistory)
	assert.Equal(t, 2, r.NeedsAction)
	require.Len(t, r.Recent, 4)
}

func TestBuild_IsReadOnly(t *testing.T) {
	s, schema := pendingState(t)
	ctx := context.Background()

	before, err := s.AllVersions(ctx, schema)
	require.NoError(t, err)

	_, err = Build(ctx, s, schema, Options{})
	require.NoError(t, err)

	after, err := s.AllVersions(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	runs, err := s.Runs(ctx, schema.Name, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestBuild_RecentLimit(t *testing.T) {
	s, schema := pendingState(t)

	r, err := Build(context.Background(), s, schema, Options{Recent: 1})
	require.NoError(t, err)
	require.Len(t, r.Recent, 1)
	assert.Equal(t, RecentChange{
		ID:        1,
		Label:     "Laptop",
		ValidFrom: "2024-03-01 10:00:00.000001",
		ValidTo:   record.ValidToOpen,
		Active:    true,
		Versions:  2,
	}, r.Recent[0])
}

func TestBuild_Synchronized(t *testing.T) {
	schema := testutil.ProductSchema()
	s := testutil.BootstrapStore(t, schema)
	upsert(t, s, schema, testutil.Product(1, "Laptop", "1299.99", 3))
	run(t, s, schema)

	r, err := Build(context.Background(), s, schema, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, r.NeedsAction)
	assert.Equal(t, 1, r.Synchronized)
	assert.Contains(t, r.String(), "All records are synchronized. No action required.")
	assert.NotContains(t, r.String(), "Records with history")
}

func TestBuild_MissingRelation(t *testing.T) {
	s := testutil.OpenStore(t)

	_, err := Build(context.Background(), s, testutil.ProductSchema(), Options{})
	assert.True(t, store.IsMissingTable(err))
}

func TestWriteText_Golden(t *testing.T) {
	s, schema := pendingState(t)

	r, err := Build(context.Background(), s, schema, Options{})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "verify_pending", []byte(r.String()))
}

func TestReport_JSON(t *testing.T) {
	s, schema := pendingState(t)

	r, err := Build(context.Background(), s, schema, Options{})
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "products", decoded["dimension"])
	assert.Equal(t, float64(2), decoded["needs_action"])
	assert.Len(t, decoded["updated"], 1)
}

func TestDiff(t *testing.T) {
	schema := testutil.ProductSchema()
	old := testutil.Product(1, "Laptop", "1400.00", 3).Attrs
	cur := []record.Value{record.Text("Laptop"), record.MustNumeric("1400"), record.Null{}}

	assert.Equal(t, []FieldDiff{{Column: "stock", Old: "3", New: "NULL"}}, Diff(schema, old, cur))
	assert.Empty(t, Diff(schema, old, old))
}

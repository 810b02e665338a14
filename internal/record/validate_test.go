package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Name:   "products",
		Source: "products_current",
		Target: "products_history",
		Columns: []Column{
			{Name: "product_name", Kind: KindText, Required: true},
			{Name: "price", Kind: KindNumeric, Required: true},
			{Name: "region", Kind: KindText},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, testSchema().Validate())

	cases := []struct {
		name   string
		mutate func(*Schema)
		errMsg string
	}{
		{"missing name", func(s *Schema) { s.Name = "" }, "name is required"},
		{"bad table", func(s *Schema) { s.Source = "Drop Table" }, "invalid table name"},
		{"same tables", func(s *Schema) { s.Target = s.Source }, "must differ"},
		{"no columns", func(s *Schema) { s.Columns = nil }, "at least one column"},
		{"reserved column", func(s *Schema) { s.Columns[0].Name = "valid_from" }, "reserved"},
		{"bad kind", func(s *Schema) { s.Columns[1].Kind = "money" }, "unknown kind"},
		{"duplicate", func(s *Schema) { s.Columns[2].Name = "price" }, "duplicate column"},
		{"bad column", func(s *Schema) { s.Columns[2].Name = "2region" }, "invalid column name"},
		{"unknown label", func(s *Schema) { s.Label = "sku" }, "label \"sku\" is not a column"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSchema()
			tc.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestDecodeRow(t *testing.T) {
	s := testSchema()

	rec, err := s.DecodeRow(1, []any{"Laptop", 1299.99, nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	require.Len(t, rec.Attrs, 3)
	assert.True(t, Equal(MustNumeric("1299.99"), rec.Attrs[1]))
	assert.Equal(t, Null{}, rec.Attrs[2])
}

func TestDecodeRowRequiredNull(t *testing.T) {
	_, err := testSchema().DecodeRow(9, []any{nil, 10.0, "North"})
	require.Error(t, err)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(9), fe.ID)
	assert.Equal(t, "product_name", fe.Column)
	assert.Contains(t, fe.Error(), "required value is NULL")
}

func TestDecodeRowKindMismatch(t *testing.T) {
	_, err := testSchema().DecodeRow(4, []any{"Desk", "expensive", nil})

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "price", fe.Column)
}

func TestDecodeRowArity(t *testing.T) {
	_, err := testSchema().DecodeRow(4, []any{"Desk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 values")
}

func TestDecodeMap(t *testing.T) {
	s := testSchema()

	rec, err := s.DecodeMap(2, map[string]any{"product_name": "Mouse", "price": 25})
	require.NoError(t, err)
	assert.Equal(t, Text("Mouse"), rec.Attrs[0])
	assert.Equal(t, Null{}, rec.Attrs[2])

	_, err = s.DecodeMap(2, map[string]any{"product_name": "Mouse", "price": 25, "colour": "red"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestColumnHelpers(t *testing.T) {
	s := testSchema()
	assert.Equal(t, []string{"product_name", "price", "region"}, s.ColumnNames())
	assert.Equal(t, 1, s.Index("price"))
	assert.Equal(t, -1, s.Index("missing"))
}

func TestLabelIndex(t *testing.T) {
	s := testSchema()
	assert.Equal(t, 0, s.LabelIndex(), "first text column by default")

	s.Label = "region"
	assert.Equal(t, 2, s.LabelIndex())

	s = Schema{Columns: []Column{{Name: "qty", Kind: KindInteger}}}
	assert.Equal(t, -1, s.LabelIndex())
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/store"
	"github.com/roach88/scd2/internal/testutil"
)

func TestDecodeSource(t *testing.T) {
	schema := testutil.ProductSchema()
	rows := []store.SourceRow{
		{ID: 1, Values: []any{"Laptop", 1299.99, int64(3)}},
		{ID: 2, Values: []any{nil, 5.0, nil}},
		{ID: 3, Values: []any{"Pen", "cheap", nil}},
		{ID: 4, Values: []any{"Mouse", int64(19), nil}},
	}

	t.Run("skip", func(t *testing.T) {
		source, skipped, err := DecodeSource(schema, rows, PolicySkip)
		require.NoError(t, err)

		require.Len(t, source, 2)
		assert.Equal(t, int64(1), source[0].ID)
		assert.Equal(t, int64(4), source[1].ID)

		require.Len(t, skipped, 2)
		assert.Equal(t, SkippedRow{ID: 2, Column: "name", Reason: "required value is NULL"}, skipped[0])
		assert.Equal(t, int64(3), skipped[1].ID)
		assert.Equal(t, "price", skipped[1].Column)
	})

	t.Run("abort", func(t *testing.T) {
		_, _, err := DecodeSource(schema, rows, PolicyAbort)
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))

		var re *RunError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, int64(2), re.ID)
	})

	t.Run("all valid", func(t *testing.T) {
		source, skipped, err := DecodeSource(schema, rows[:1], PolicyAbort)
		require.NoError(t, err)
		assert.Len(t, source, 1)
		assert.Empty(t, skipped)
	})
}

func TestInvalidRowPolicy_String(t *testing.T) {
	assert.Equal(t, "skip", PolicySkip.String())
	assert.Equal(t, "abort", PolicyAbort.String())
	assert.Equal(t, "InvalidRowPolicy(9)", InvalidRowPolicy(9).String())
}

func TestDecodeSource_InvalidUTF8(t *testing.T) {
	schema := testutil.ProductSchema()
	rows := []store.SourceRow{
		{ID: 1, Values: []any{[]byte("Caf\xe9"), 4.5, nil}},
		{ID: 2, Values: []any{"Café", 4.5, nil}},
	}

	source, skipped, err := DecodeSource(schema, rows, PolicySkip)
	require.NoError(t, err)
	require.Len(t, source, 1)
	assert.Equal(t, int64(2), source[0].ID)
	require.Len(t, skipped, 1)
	assert.Equal(t, SkippedRow{ID: 1, Column: "name", Reason: "text is not valid UTF-8"}, skipped[0])

	_, _, err = DecodeSource(schema, rows, PolicyAbort)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

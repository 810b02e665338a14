package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scd2/internal/record"
)

const (
	t0   = "2024-03-01 10:00:00.000000"
	t1   = "2024-03-01 10:00:00.000001"
	open = "9999-12-31 23:59:59.999999"
)

func productSchema() record.Schema {
	return record.Schema{
		Name:   "products",
		Source: "products_current",
		Target: "products_history",
		Columns: []record.Column{
			{Name: "product_name", Kind: record.KindText, Required: true},
			{Name: "price", Kind: record.KindNumeric, Required: true},
		},
	}
}

func version(id int64, from, to string, active bool, name, price string) record.VersionRecord {
	return record.VersionRecord{
		ID:        id,
		Attrs:     []record.Value{record.Text(name), record.MustNumeric(price)},
		ValidFrom: from,
		ValidTo:   to,
		IsActive:  active,
	}
}

func TestAssertVersionCount(t *testing.T) {
	versions := []record.VersionRecord{
		version(1, t0, t1, false, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
		version(2, t0, open, true, "Ink", "3"),
	}

	assert.NoError(t, assertVersionCount(versions, Assertion{Type: AssertVersions, ID: 1, Count: 2}))
	assert.NoError(t, assertVersionCount(versions, Assertion{Type: AssertVersions, ID: 3, Count: 0}))

	err := assertVersionCount(versions, Assertion{Type: AssertVersions, ID: 2, Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "expected 2 versions of id 2, got 1", ae.Error())
}

func TestAssertActive_SubsetMatch(t *testing.T) {
	schema := productSchema()
	versions := []record.VersionRecord{
		version(1, t0, t1, false, "Pen", "1"),
		version(1, t1, open, true, "Pen", "1400.00"),
	}

	// 1400 matches the stored 1400.00 once decoded as numeric
	err := assertActive(schema, versions, Assertion{Type: AssertActive, ID: 1, Expect: map[string]any{"price": 1400}})
	assert.NoError(t, err)

	err = assertActive(schema, versions, Assertion{Type: AssertActive, ID: 1, Expect: map[string]any{"product_name": "Pencil", "price": "1"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "price=1400")
	assert.Contains(t, ae.Actual, "product_name=Pen")
}

func TestAssertActive_Errors(t *testing.T) {
	schema := productSchema()
	versions := []record.VersionRecord{version(1, t0, t1, false, "Pen", "1")}

	err := assertActive(schema, versions, Assertion{Type: AssertActive, ID: 1, Expect: map[string]any{"price": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "an active version of id 1")

	versions = append(versions, version(1, t1, open, true, "Pen", "1"))
	err = assertActive(schema, versions, Assertion{Type: AssertActive, ID: 1, Expect: map[string]any{"colour": "red"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "colour"`)

	err = assertActive(schema, versions, Assertion{Type: AssertActive, ID: 1, Expect: map[string]any{"price": "lots"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column price")
}

func TestAssertOneActive(t *testing.T) {
	ok := []record.VersionRecord{
		version(1, t0, t1, false, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
		version(2, t0, open, true, "Ink", "3"),
	}
	assert.NoError(t, assertOneActive(ok))

	noneActive := []record.VersionRecord{
		version(1, t0, t1, false, "Pen", "1"),
		version(2, t0, open, true, "Ink", "3"),
	}
	err := assertOneActive(noneActive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one active version of id 1, got 0")

	twoActive := []record.VersionRecord{
		version(1, t0, open, true, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
	}
	err = assertOneActive(twoActive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 2")
}

func TestAssertClosure(t *testing.T) {
	chain := []record.VersionRecord{
		version(1, t0, t1, false, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
		version(2, t1, open, true, "Ink", "3"),
	}
	assert.NoError(t, assertClosure(chain))

	gap := []record.VersionRecord{
		version(1, t0, "2024-03-01 09:00:00.000000", false, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
	}
	err := assertClosure(gap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to end at "+t1)

	activePredecessor := []record.VersionRecord{
		version(1, t0, open, true, "Pen", "1"),
		version(1, t1, open, true, "Pen", "2"),
	}
	err = assertClosure(activePredecessor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got active")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{Type: AssertTotal, Expected: "3 versions", Actual: "2"}
	assert.Equal(t, "expected 3 versions, got 2", err.Error())
}

package record

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintKnownVector(t *testing.T) {
	fp, err := Fingerprint([]Value{Text("Laptop"), MustNumeric("1299.99")})
	require.NoError(t, err)

	// SHA256("scd2/fingerprint/v1" + 0x00 + `["Laptop",1299.99]`)
	assert.Equal(t, "1410ee565be536d15dd6f53ae8aa844de4ff42c1d5cb5a9c923f26984f083ae8", fp)
	assert.Len(t, fp, FingerprintLen)
}

func TestFingerprintEmptyAttrs(t *testing.T) {
	assert.Equal(t,
		"0a249dc35f2a903222807ae57544c31b062135d44d1cedc3dedf258a9fce512b",
		MustFingerprint(nil),
	)
}

func TestFingerprintDeterminism(t *testing.T) {
	for i := 0; i < 200; i++ {
		attrs := []Value{
			Text(fmt.Sprintf("product-%d", i)),
			MustNumeric(fmt.Sprintf("%d.%02d", i*7, i%100)),
			Int(int64(i)),
			Null{},
		}
		clone := []Value{
			Text(fmt.Sprintf("product-%d", i)),
			MustNumeric(fmt.Sprintf("%d.%02d", i*7, i%100)),
			Int(int64(i)),
			Null{},
		}
		assert.Equal(t, MustFingerprint(attrs), MustFingerprint(clone), "tuple %d", i)
	}
}

func TestFingerprintDistinctTuples(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 500; i++ {
		fp := MustFingerprint([]Value{Text(fmt.Sprintf("item-%d", i)), Int(int64(i % 7))})
		prev, dup := seen[fp]
		require.False(t, dup, "tuple %d collides with tuple %d", i, prev)
		seen[fp] = i
	}
}

func TestFingerprintFieldBoundaryShift(t *testing.T) {
	cases := []struct {
		name string
		a, b []Value
	}{
		{"AB|C vs A|BC", []Value{Text("AB"), Text("C")}, []Value{Text("A"), Text("BC")}},
		{"empty first", []Value{Text(""), Text("ABC")}, []Value{Text("ABC"), Text("")}},
		{"separator inside value", []Value{Text("A|B"), Text("C")}, []Value{Text("A"), Text("B|C")}},
		{"quote inside value", []Value{Text(`A","B`)}, []Value{Text("A"), Text("B")}},
		{"text vs numeric", []Value{Text("1400")}, []Value{MustNumeric("1400")}},
		{"null vs empty text", []Value{Null{}}, []Value{Text("")}},
		{"null vs text null", []Value{Null{}}, []Value{Text("null")}},
		{"int vs numeric fraction", []Value{Int(1)}, []Value{MustNumeric("1.5")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, MustFingerprint(tc.a), MustFingerprint(tc.b))
		})
	}
}

func TestFingerprintNumericScaleInsensitive(t *testing.T) {
	a := MustFingerprint([]Value{MustNumeric("1400.00")})
	b := MustFingerprint([]Value{MustNumeric("1400")})
	c, err := NumericFromFloat(1400.0)
	require.NoError(t, err)

	assert.Equal(t, a, b, "trailing zeros do not change the value")
	assert.Equal(t, a, MustFingerprint([]Value{c}))
}

func TestFingerprintNFC(t *testing.T) {
	composed := Text("caf\u00e9")
	decomposed := Text("cafe\u0301")

	assert.Equal(t, MustFingerprint([]Value{composed}), MustFingerprint([]Value{decomposed}),
		"canonically equivalent strings share a fingerprint")
}

func TestFingerprintOrderMatters(t *testing.T) {
	a := MustFingerprint([]Value{Text("North"), Text("Active")})
	b := MustFingerprint([]Value{Text("Active"), Text("North")})
	assert.NotEqual(t, a, b)
}

func TestFingerprintRejectsInvalidUTF8(t *testing.T) {
	for _, s := range []string{"\xff", "\xfe", "caf\xe9"} {
		_, err := Fingerprint([]Value{Text(s)})
		require.Error(t, err, "%q", s)
		assert.Contains(t, err.Error(), "not valid UTF-8")
	}

	// U+FFFD itself is valid text and must not stand in for a bad byte.
	_, err := Fingerprint([]Value{Text("\ufffd")})
	assert.NoError(t, err)
}

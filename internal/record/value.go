package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface for business attribute values.
// Only Null, Text, Int and Numeric implement it.
type Value interface {
	recordValue()
}

// Null represents SQL NULL in an optional column.
type Null struct{}

func (Null) recordValue() {}

// Text is a text attribute.
type Text string

func (Text) recordValue() {}

// Int is an integer attribute.
type Int int64

func (Int) recordValue() {}

// Numeric is an exact decimal attribute (prices, amounts).
// Compare with Equal, never with ==: 1400 and 1400.00 are the same value
// with different internal exponents.
type Numeric struct {
	decimal.Decimal
}

func (Numeric) recordValue() {}

// NewNumeric parses a decimal literal such as "1299.99".
func NewNumeric(s string) (Numeric, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Numeric{}, fmt.Errorf("invalid numeric %q: %w", s, err)
	}
	return Numeric{d}, nil
}

// MustNumeric is like NewNumeric but panics on error.
// Use only in tests or for literals known to be valid.
func MustNumeric(s string) Numeric {
	n, err := NewNumeric(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NumericFromFloat converts a driver float to a Numeric using the shortest
// decimal representation that round-trips.
func NumericFromFloat(f float64) (Numeric, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Numeric{}, fmt.Errorf("non-finite numeric %v", f)
	}
	return Numeric{decimal.NewFromFloat(f)}, nil
}

// Canonical returns the normalized decimal literal (no trailing zeros,
// no exponent). 1400.00 and 1400 both yield "1400".
func (n Numeric) Canonical() string {
	return n.Decimal.String()
}

// Equal reports whether two values are the same attribute value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Numeric:
		bv, ok := b.(Numeric)
		return ok && av.Decimal.Equal(bv.Decimal)
	default:
		return false
	}
}

// Format renders a value for human-readable output.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case Text:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Numeric:
		return val.Canonical()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Plain converts a value to a plain Go value for JSON/YAML output.
// Numerics become their canonical string to stay exact.
func Plain(v Value) any {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Int:
		return int64(val)
	case Numeric:
		return val.Canonical()
	default:
		return nil
	}
}

// SQLArg converts a value to a database/sql argument.
func SQLArg(v Value) any {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Int:
		return int64(val)
	case Numeric:
		return val.InexactFloat64()
	default:
		return nil
	}
}

// Decode converts a raw driver or YAML value into a Value of the given kind.
// nil decodes to Null; callers enforce required columns.
func Decode(kind Kind, raw any) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}

	switch kind {
	case KindText:
		switch v := raw.(type) {
		case string:
			return decodeText(v)
		case []byte:
			return decodeText(string(v))
		case time.Time:
			// YAML timestamps and DATE-typed driver values.
			return Text(v.Format(time.DateOnly)), nil
		}
	case KindInteger:
		switch v := raw.(type) {
		case int64:
			return Int(v), nil
		case int:
			return Int(int64(v)), nil
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				return Int(int64(v)), nil
			}
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err == nil {
				return Int(n), nil
			}
		case []byte:
			n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
			if err == nil {
				return Int(n), nil
			}
		}
	case KindNumeric:
		switch v := raw.(type) {
		case float64:
			return NumericFromFloat(v)
		case int64:
			return Numeric{decimal.NewFromInt(v)}, nil
		case int:
			return Numeric{decimal.NewFromInt(int64(v))}, nil
		case string:
			return NewNumeric(v)
		case []byte:
			return NewNumeric(string(v))
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	return nil, fmt.Errorf("cannot decode %T as %s", raw, kind)
}

func decodeText(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("text is not valid UTF-8")
	}
	return Text(s), nil
}

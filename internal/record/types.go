package record

import (
	"fmt"
	"time"
)

// Kind is the declared type of a business column.
type Kind string

const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindNumeric Kind = "numeric"
)

// ValidKinds defines allowed column kinds.
var ValidKinds = map[Kind]bool{
	KindText:    true,
	KindInteger: true,
	KindNumeric: true,
}

// Bookkeeping column names. Business columns may not reuse them.
const (
	ColumnID          = "id"
	ColumnFingerprint = "fingerprint"
	ColumnValidFrom   = "valid_from"
	ColumnValidTo     = "valid_to"
	ColumnIsActive    = "is_active"
)

// ReservedColumns lists names a dimension may not declare as business columns.
var ReservedColumns = map[string]bool{
	ColumnID:          true,
	ColumnFingerprint: true,
	ColumnValidFrom:   true,
	ColumnValidTo:     true,
	ColumnIsActive:    true,
}

// StampLayout is the fixed-width UTC layout of valid_from / valid_to.
// Microsecond resolution; lexical order equals chronological order.
const StampLayout = "2006-01-02 15:04:05.000000"

// ValidToOpen is the sentinel valid_to of an active version.
const ValidToOpen = "9999-12-31 23:59:59.999999"

// FormatStamp renders t in StampLayout (UTC).
func FormatStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// ParseStamp parses a StampLayout string.
func ParseStamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(StampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stamp %q: %w", s, err)
	}
	return t, nil
}

// Column is a business column of a dimension.
type Column struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
}

// Schema describes one tracked dimension: where current truth lives,
// where history lives, and the ordered business columns.
// Column order is the fingerprint order.
type Schema struct {
	Name    string   `json:"name"`
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Label   string   `json:"label,omitempty"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns business column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// LabelIndex returns the column used to name an entity in reports: the
// declared label, else the first text column, else -1.
func (s Schema) LabelIndex() int {
	if s.Label != "" {
		return s.Index(s.Label)
	}
	for i, c := range s.Columns {
		if c.Kind == KindText {
			return i
		}
	}
	return -1
}

// Index returns the position of a business column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SourceRecord is one row of current truth.
type SourceRecord struct {
	ID    int64   `json:"id"`
	Attrs []Value `json:"-"`
}

// VersionRecord is one historical version of an entity.
type VersionRecord struct {
	ID          int64   `json:"id"`
	Attrs       []Value `json:"-"`
	Fingerprint string  `json:"fingerprint"`
	ValidFrom   string  `json:"valid_from"`
	ValidTo     string  `json:"valid_to"`
	IsActive    bool    `json:"is_active"`
}

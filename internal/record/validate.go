package record

import (
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as a table or column name.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// FieldError reports a malformed attribute in a source row.
type FieldError struct {
	ID     int64
	Column string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("id %d: column %s: %s", e.ID, e.Column, e.Reason)
}

// Validate checks the schema's structure.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("dimension name is required")
	}
	for _, table := range []string{s.Source, s.Target} {
		if !ValidIdentifier(table) {
			return fmt.Errorf("dimension %s: invalid table name %q", s.Name, table)
		}
	}
	if s.Source == s.Target {
		return fmt.Errorf("dimension %s: source and target must differ", s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("dimension %s: at least one column is required", s.Name)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !ValidIdentifier(c.Name) {
			return fmt.Errorf("dimension %s: invalid column name %q", s.Name, c.Name)
		}
		if ReservedColumns[c.Name] {
			return fmt.Errorf("dimension %s: column %q is reserved", s.Name, c.Name)
		}
		if !ValidKinds[c.Kind] {
			return fmt.Errorf("dimension %s: column %s: unknown kind %q", s.Name, c.Name, c.Kind)
		}
		if seen[c.Name] {
			return fmt.Errorf("dimension %s: duplicate column %q", s.Name, c.Name)
		}
		seen[c.Name] = true
	}
	if s.Label != "" && !seen[s.Label] {
		return fmt.Errorf("dimension %s: label %q is not a column", s.Name, s.Label)
	}
	return nil
}

// DecodeRow converts raw column values (schema order) into a SourceRecord.
// Returns *FieldError for a NULL in a required column or a value that
// does not fit the column's kind.
func (s Schema) DecodeRow(id int64, raw []any) (SourceRecord, error) {
	if len(raw) != len(s.Columns) {
		return SourceRecord{}, &FieldError{
			ID:     id,
			Column: "*",
			Reason: fmt.Sprintf("expected %d values, got %d", len(s.Columns), len(raw)),
		}
	}

	attrs := make([]Value, len(raw))
	for i, c := range s.Columns {
		v, err := Decode(c.Kind, raw[i])
		if err != nil {
			return SourceRecord{}, &FieldError{ID: id, Column: c.Name, Reason: err.Error()}
		}
		if _, isNull := v.(Null); isNull && c.Required {
			return SourceRecord{}, &FieldError{ID: id, Column: c.Name, Reason: "required value is NULL"}
		}
		attrs[i] = v
	}
	return SourceRecord{ID: id, Attrs: attrs}, nil
}

// DecodeMap converts a column-name keyed map (YAML seed rows) into a
// SourceRecord. Missing columns decode as NULL; unknown keys are rejected.
func (s Schema) DecodeMap(id int64, fields map[string]any) (SourceRecord, error) {
	raw := make([]any, len(s.Columns))
	for name, v := range fields {
		idx := s.Index(name)
		if idx < 0 {
			return SourceRecord{}, &FieldError{ID: id, Column: name, Reason: "unknown column"}
		}
		raw[idx] = v
	}
	return s.DecodeRow(id, raw)
}

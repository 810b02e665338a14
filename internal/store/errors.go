package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrStaleVersion is returned when an expire matches no active row: the
// version the caller planned to close is no longer the active one.
var ErrStaleVersion = errors.New("active version not found")

// MissingTableError reports an absent source or target relation.
type MissingTableError struct {
	Table string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Table)
}

// IsMissingTable reports whether err is (or wraps) a MissingTableError.
func IsMissingTable(err error) bool {
	var mt *MissingTableError
	return errors.As(err, &mt)
}

// IsKeyConflict reports whether err is a PRIMARY KEY or UNIQUE violation.
// Uses errors.As to handle wrapped errors.
func IsKeyConflict(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

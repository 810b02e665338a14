package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/scd2/internal/store"
)

// RunError represents a failed reconciliation run.
//
// Every RunError means the run committed nothing: read-phase errors abort
// before any write and write-phase errors roll the whole run back.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the affected natural key, or 0 when the error is not tied to one.
	ID int64

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeMissingRelation indicates the source or target table is absent.
	ErrCodeMissingRelation RunErrorCode = "MISSING_RELATION"

	// ErrCodeKeyCollision indicates a write violated (id, valid_from)
	// uniqueness or the single-active-version rule.
	ErrCodeKeyCollision RunErrorCode = "KEY_COLLISION"

	// ErrCodeStorageFailure indicates the store rejected a read or write.
	ErrCodeStorageFailure RunErrorCode = "STORAGE_FAILURE"

	// ErrCodeInvalidInput indicates a malformed source row under PolicyAbort,
	// or a source set with duplicate ids.
	ErrCodeInvalidInput RunErrorCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ID != 0 {
		msg = fmt.Sprintf("%s (id=%d)", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsMissingRelation returns true if the run failed because a table is absent.
func IsMissingRelation(err error) bool { return hasCode(err, ErrCodeMissingRelation) }

// IsKeyCollision returns true if the run failed on a key violation.
func IsKeyCollision(err error) bool { return hasCode(err, ErrCodeKeyCollision) }

// IsStorageFailure returns true if the run failed in the store.
func IsStorageFailure(err error) bool { return hasCode(err, ErrCodeStorageFailure) }

// IsInvalidInput returns true if the run rejected its input.
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// storeError maps a store failure during op onto the run taxonomy.
func storeError(op string, id int64, err error) *RunError {
	code := ErrCodeStorageFailure
	switch {
	case store.IsMissingTable(err):
		code = ErrCodeMissingRelation
	case store.IsKeyConflict(err):
		code = ErrCodeKeyCollision
	}
	return &RunError{Code: code, Message: op, ID: id, Err: err}
}

func invalidInput(id int64, err error) *RunError {
	return &RunError{Code: ErrCodeInvalidInput, Message: "malformed source row", ID: id, Err: err}
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/scd2/internal/dimension"
	"github.com/roach88/scd2/internal/engine"
	"github.com/roach88/scd2/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run failed, scenarios failed, invalid input rejected
	ExitCommandError = 2 // Command error (bad flags, missing tables, unreadable files)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // run error code, dimension error code, or E_COMMAND
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Render outputs data as a JSON envelope, or hands the writer to text for
// human-readable output.
func (f *OutputFormatter) Render(data any, text func(io.Writer) error) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail converts err to an ExitError whose code follows the error's
// category. In JSON mode the error envelope is written first; in text mode
// the caller's error printer reports it.
func (f *OutputFormatter) Fail(message string, err error) error {
	if f.Format == "json" {
		var details any
		var re *engine.RunError
		if errors.As(err, &re) && re.ID != 0 {
			details = map[string]int64{"id": re.ID}
		}
		_ = f.Error(ErrorCode(err), fmt.Sprintf("%s: %v", message, err), details)
	}
	return WrapExitError(exitCode(err), message, err)
}

// ErrorCode names the category of err for error envelopes.
func ErrorCode(err error) string {
	var (
		re *engine.RunError
		le *dimension.LoadError
		ce *dimension.CompileError
	)
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case errors.As(err, &le):
		return le.Code
	case errors.As(err, &ce):
		return "E_DIMENSION"
	case store.IsMissingTable(err):
		return string(engine.ErrCodeMissingRelation)
	default:
		return "E_COMMAND"
	}
}

// exitCode maps failed runs to ExitFailure and everything that stops a
// command from starting to ExitCommandError.
func exitCode(err error) int {
	if engine.IsMissingRelation(err) || store.IsMissingTable(err) {
		return ExitCommandError
	}
	var re *engine.RunError
	if errors.As(err, &re) {
		return ExitFailure
	}
	return ExitCommandError
}

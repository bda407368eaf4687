package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/objgraph/internal/deserializer"
	"github.com/roach88/objgraph/internal/revive"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Deserialization or validation failure
	ExitCommandError = 2 // Command error (invalid paths, unreadable config, etc.)
)

// Error codes reported by CLI commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeReadFailed = "E002" // Input could not be read
	ErrCodeConfig     = "E003" // Configuration invalid
	ErrCodeCatalog    = "E004" // Catalog could not be opened or queried
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeHTML       = "E006" // HTML template could not be parsed
	ErrCodeNoRoot     = "E007" // Document has no root label

	ErrCodeSyntax = "E200" // Serialization is not valid JSON
)

// reviveCodes maps deserialization error categories to CLI codes.
var reviveCodes = map[revive.ErrorCode]string{
	revive.ErrCodeInvalidDescriptor:     "E201",
	revive.ErrCodeInvalidLabel:          "E202",
	revive.ErrCodeMissingLocation:       "E203",
	revive.ErrCodeObjectNotFound:        "E204",
	revive.ErrCodeElementNotFound:       "E205",
	revive.ErrCodeUnresolvedReference:   "E206",
	revive.ErrCodeCircularReference:     "E207",
	revive.ErrCodeExternalObjectMissing: "E208",
	revive.ErrCodeModuleLoadFailed:      "E209",
	revive.ErrCodeInvalidValue:          "E210",
	revive.ErrCodeBindingFailed:         "E211",
	revive.ErrCodeUnitFailed:            "E212",
	revive.ErrCodeUnknownType:           "E213",
}

// codeFor returns the CLI code of a deserialization error.
func codeFor(err error) string {
	var se *deserializer.SyntaxError
	if errors.As(err, &se) {
		return ErrCodeSyntax
	}
	if code, ok := reviveCodes[revive.CodeOf(err)]; ok {
		return code
	}
	return ErrCodeGeneric
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
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
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Lines outputs a list: one item per line as text, or a JSON array.
func (f *OutputFormatter) Lines(items []string) error {
	if items == nil {
		items = []string{}
	}
	if f.Format == "json" {
		return f.Success(items)
	}
	for _, item := range items {
		fmt.Fprintln(f.Writer, item)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
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

// Fail outputs err and returns it as an ExitError with exitCode.
func (f *OutputFormatter) Fail(exitCode int, code string, err error) error {
	var details any
	var re *revive.Error
	if errors.As(err, &re) && re.Label != "" {
		details = map[string]string{"label": re.Label}
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

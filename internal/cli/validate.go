package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/deserializer"
	"github.com/roach88/objgraph/internal/revive"
	"github.com/roach88/objgraph/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a serialization without reviving it",
		Long: `Validate a serialization document without loading any module.

Checks JSON syntax, the descriptor schema and the static rules
deserialization would enforce: label shapes, object locations and values
blocks. Every problem found is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, file string) error {
	formatter := newFormatter(cmd, rootOpts)

	data, err := readDocument(file)
	if err != nil {
		return failCommand(formatter, err)
	}

	errs := ValidateDocument(file, data)
	formatter.VerboseLog("Validated %s: %d issue(s)", file, len(errs))
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, file)
}

// ValidateDocument returns every schema and static problem of data. A
// syntax error is the only problem reported for malformed JSON.
func ValidateDocument(file string, data []byte) []schema.ValidationError {
	errs := schema.Validate(file, data)
	for _, e := range errs {
		if e.Code == schema.ErrSyntax {
			return errs
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		// The schema accepted a document that is not an object.
		return append(errs, schema.ValidationError{Message: err.Error(), Code: ErrCodeGeneric})
	}

	seen := make(map[string]bool, len(errs))
	for _, e := range errs {
		seen[e.Label] = true
	}
	for _, err := range deserializer.Check(doc) {
		var re *revive.Error
		if !errors.As(err, &re) {
			continue
		}
		// Shape errors from the schema already cover the label.
		if seen[re.Label] && re.Code == revive.ErrCodeInvalidDescriptor {
			continue
		}
		errs = append(errs, schema.ValidationError{
			Label:   re.Label,
			Message: re.Message,
			Code:    reviveCodes[re.Code],
		})
	}
	return errs
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, file string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", file)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		where := err.Label
		if err.Field != "" {
			where += "." + err.Field
		}
		if where != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, where, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	return failure
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YossiLevi4497/OpenCEP/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Patterns int                        `json:"patterns"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <patterns-dir>",
		Short: "Validate patterns without evaluating them",
		Long: `Validate CUE patterns without evaluating any events.

Checks syntax and schema, builds every pattern's tree once, and reports
policy mistakes such as single types no event can match or frozen
negated events.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, patternsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPatterns(patternsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, patternsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		code, message := parseCompileError(err)
		validationErrors = append(validationErrors, compiler.ValidationError{
			Field:   "load",
			Message: message,
			Code:    code,
		})
	}
	for _, c := range loadResult.Patterns {
		formatter.VerboseLog("Validating pattern: %s", c.Pattern.Name)
	}
	validationErrors = append(validationErrors, compiler.ValidateAll(loadResult.Patterns)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(loadResult.Patterns))
}

func outputValidateSuccess(formatter *OutputFormatter, patterns int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Patterns: patterns})
	}

	fmt.Fprintf(formatter.Writer, "✓ All validations passed (%d pattern(s))\n", patterns)
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputValidationErrors reports pattern problems. They are validation
// failures (exit code 1), not command errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)),
			},
			Data: ValidationResult{Valid: false, Errors: errs},
		}
		if err := writeResponse(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Pattern != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", e.Code, e.Pattern, e.Field)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Field)
		}
		fmt.Fprintf(formatter.Writer, "    %s\n\n", e.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

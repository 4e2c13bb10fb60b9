package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/YossiLevi4497/OpenCEP/internal/compiler"
	"github.com/YossiLevi4497/OpenCEP/internal/ir"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// PatternSummary describes one compiled pattern.
type PatternSummary struct {
	Name      string   `json:"name"`
	Structure string   `json:"structure"`
	Where     string   `json:"where"`
	Within    string   `json:"within"`
	Single    []string `json:"single,omitempty"`
	Freeze    []string `json:"freeze,omitempty"`
	Plan      string   `json:"plan"`
	Tree      string   `json:"tree"`
	Hash      string   `json:"hash"`
}

// CompilationResult holds the compiled patterns.
type CompilationResult struct {
	Patterns []PatternSummary `json:"patterns"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patterns-dir>",
		Short: "Compile CUE patterns and show their evaluation trees",
		Long: `Compile the CUE pattern package in a directory.

Every pattern is parsed, its plan is resolved (left-deep unless the
pattern gives one) and its tree is built once to prove the plan is valid.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, patternsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPatterns(patternsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, patternsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{Patterns: make([]PatternSummary, 0, len(loadResult.Patterns))}
	for _, c := range loadResult.Patterns {
		formatter.VerboseLog("Compiling pattern: %s", c.Pattern.Name)
		summary, err := summarizePattern(c)
		if err != nil {
			return outputCompileErrors(formatter, []error{err})
		}
		result.Patterns = append(result.Patterns, summary)
	}

	if opts.Output != "" {
		if err := writeCompilationToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarizePattern builds the pattern's tree and describes it.
func summarizePattern(c compiler.Compiled) (PatternSummary, error) {
	p := c.Plan
	if p == nil {
		var err error
		if p, err = plan.LeftDeep(c.Pattern); err != nil {
			return PatternSummary{}, &LoadError{Code: ErrCodePlan, Message: fmt.Sprintf("pattern %s: %v", c.Pattern.Name, err)}
		}
	}
	t, err := tree.New(p, c.Pattern, tree.DefaultStorageParams())
	if err != nil {
		return PatternSummary{}, &LoadError{Code: ErrCodePlan, Message: fmt.Sprintf("pattern %s: %v", c.Pattern.Name, err)}
	}

	pat := c.Pattern
	summary := PatternSummary{
		Name:      pat.Name,
		Structure: pat.Structure.String(),
		Where:     pat.Condition.String(),
		Within:    formatWindow(pat.Window),
		Plan:      fmt.Sprint(p),
		Tree:      t.Summary().String(),
		Hash:      ir.PatternHash(pat.String()),
	}
	if pat.Policy != nil {
		summary.Single = pat.Policy.Single
		summary.Freeze = pat.Policy.Freeze
	}
	return summary, nil
}

func formatWindow(d time.Duration) string {
	if d == pattern.Unbounded {
		return "unbounded"
	}
	return d.String()
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d pattern(s)\n\n", len(result.Patterns))
	for _, p := range result.Patterns {
		fmt.Fprintf(w, "  %s: %s\n", p.Name, p.Structure)
		fmt.Fprintf(w, "    where:  %s\n", p.Where)
		fmt.Fprintf(w, "    within: %s\n", p.Within)
		if len(p.Single) > 0 {
			fmt.Fprintf(w, "    single: %v\n", p.Single)
		}
		if len(p.Freeze) > 0 {
			fmt.Fprintf(w, "    freeze: %v\n", p.Freeze)
		}
		fmt.Fprintf(w, "    plan:   %s\n", p.Plan)
		if formatter.Verbose {
			fmt.Fprintf(w, "    tree:   %s\n", p.Tree)
			fmt.Fprintf(w, "    hash:   %s\n", p.Hash)
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled patterns to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := writeResponse(formatter.Writer, response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeCompilationToFile writes the compilation result as indented JSON.
func writeCompilationToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling patterns: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

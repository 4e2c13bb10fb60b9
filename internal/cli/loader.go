package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/YossiLevi4497/OpenCEP/internal/compiler"
)

// LoadMode controls how errors are handled during pattern loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading patterns from a directory.
type LoadResult struct {
	Patterns  []compiler.Compiled
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during pattern loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPatterns loads and compiles the CUE patterns of a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means the directory itself could not be loaded.
func LoadPatterns(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patterns directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing patterns directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	compiled, compileErrs := compiler.CompileAll(value)
	result.Patterns = compiled

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err, ErrCodeGeneric))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	return result, errs
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, fallback string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	if errors.Is(err, compiler.ErrNoPatterns) {
		return &LoadError{Code: ErrCodeNoPatterns, Message: err.Error()}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeNoPatterns  = "E004" // CUE package declares no patterns
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Pattern compilation errors
	ErrCodeStructure = "E101" // Invalid structure
	ErrCodeWindow    = "E102" // Invalid or missing window
	ErrCodeWhere     = "E103" // Invalid condition
	ErrCodePolicy    = "E104" // Invalid consumption policy
	ErrCodePlan      = "E105" // Invalid evaluation plan
	ErrCodePattern   = "E106" // Pattern rejected as a whole
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Fields are paths such as "structure.seq[1].type"; the first segment
// decides the code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, ".")
	head, _, _ = strings.Cut(head, "[")
	switch head {
	case "structure":
		return ErrCodeStructure
	case "within":
		return ErrCodeWindow
	case "where":
		return ErrCodeWhere
	case "policy":
		return ErrCodePolicy
	case "plan":
		return ErrCodePlan
	case "pattern":
		return ErrCodePattern
	default:
		return ErrCodeGeneric
	}
}

package tree

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a tree that cannot be built from the given
// pattern and plan.
type ConfigurationError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Plan is the plan node that failed, when known.
	Plan string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownOperator indicates a plan operator the tree cannot build.
	ErrCodeUnknownOperator ConfigErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeIllegalStructure indicates a plan node that does not fit the
	// pattern structure at its position.
	ErrCodeIllegalStructure ConfigErrorCode = "ILLEGAL_STRUCTURE"

	// ErrCodeUnusedConditions indicates condition atoms no node could take.
	ErrCodeUnusedConditions ConfigErrorCode = "UNUSED_CONDITIONS"

	// ErrCodeInvalidPlan indicates a malformed plan.
	ErrCodeInvalidPlan ConfigErrorCode = "INVALID_PLAN"

	// ErrCodeInvalidKleeneBounds indicates a closure whose bounds admit no size.
	ErrCodeInvalidKleeneBounds ConfigErrorCode = "INVALID_KLEENE_BOUNDS"
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Plan != "" {
		return fmt.Sprintf("%s: %s (plan=%s)", e.Code, e.Message, e.Plan)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func configError(code ConfigErrorCode, plan fmt.Stringer, format string, args ...any) *ConfigurationError {
	e := &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...)}
	if plan != nil {
		e.Plan = plan.String()
	}
	return e
}

// IsConfigurationError reports whether err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// HasCode reports whether err is a ConfigurationError with the given code.
func HasCode(err error, code ConfigErrorCode) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

package compiler

import (
	"errors"
	"fmt"
	"slices"

	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// Validation error codes (E200-E299)
const (
	ErrTreeConstruction = "E201" // the plan cannot be built into a tree
	ErrDuplicatePattern = "E202" // two patterns share a name
	ErrUnusedSingleType = "E203" // single policy names a type the pattern never matches
	ErrNegatedFreeze    = "E204" // freeze names a negated event
)

// ValidationError represents a pattern validation error.
type ValidationError struct {
	Pattern string `json:"pattern"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pattern, e.Field, e.Message)
}

// Validate checks a compiled pattern beyond what CUE and pattern.New
// enforce, including a dry-run tree construction.
// Returns all errors found (does not fail-fast).
func Validate(c Compiled) []ValidationError {
	var errs []ValidationError
	pat := c.Pattern

	// E201: the tree must build from the plan
	if _, err := c.Definition().Build(tree.DefaultStorageParams(), ""); err != nil {
		msg := err.Error()
		var cfg *tree.ConfigurationError
		if errors.As(err, &cfg) {
			msg = fmt.Sprintf("%s: %s", cfg.Code, cfg.Message)
		}
		errs = append(errs, ValidationError{
			Pattern: pat.Name,
			Field:   "plan",
			Message: msg,
			Code:    ErrTreeConstruction,
		})
	}

	if pat.Policy == nil {
		return errs
	}

	positiveTypes := map[string]bool{}
	negated := map[string]bool{}
	for _, ref := range pat.Primitives() {
		if ref.Negated {
			negated[ref.Name] = true
			continue
		}
		positiveTypes[ref.Type] = true
	}

	// E203: single types must be matched by a positive event
	for i, typ := range pat.Policy.Single {
		if !positiveTypes[typ] {
			errs = append(errs, ValidationError{
				Pattern: pat.Name,
				Field:   fmt.Sprintf("policy.single[%d]", i),
				Message: fmt.Sprintf("event type %q is not matched by any positive event", typ),
				Code:    ErrUnusedSingleType,
			})
		}
	}

	// E204: a negated event is never part of a match, so it cannot unfreeze
	for i, name := range pat.Policy.Freeze {
		if negated[name] {
			errs = append(errs, ValidationError{
				Pattern: pat.Name,
				Field:   fmt.Sprintf("policy.freeze[%d]", i),
				Message: fmt.Sprintf("event %q is negated and can never be matched", name),
				Code:    ErrNegatedFreeze,
			})
		}
	}

	return errs
}

// ValidateAll validates every pattern and checks names are unique.
func ValidateAll(cs []Compiled) []ValidationError {
	var (
		errs []ValidationError
		seen []string
	)
	for _, c := range cs {
		// E202: duplicate pattern name
		if slices.Contains(seen, c.Pattern.Name) {
			errs = append(errs, ValidationError{
				Pattern: c.Pattern.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate pattern name %q", c.Pattern.Name),
				Code:    ErrDuplicatePattern,
			})
		}
		seen = append(seen, c.Pattern.Name)
		errs = append(errs, Validate(c)...)
	}
	return errs
}

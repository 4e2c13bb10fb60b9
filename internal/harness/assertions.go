package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/YossiLevi4497/OpenCEP/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Matches  []MatchSummary // Matches in scope, for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Matches) > 0 {
		fmt.Fprintf(&buf, "\nMatches:\n")
		for i, m := range e.Matches {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, m.Pattern, m.Indices())
		}
	}

	return buf.String()
}

// scopeName describes the pattern an assertion is restricted to.
func scopeName(pattern string) string {
	if pattern == "" {
		return "any pattern"
	}
	return "pattern " + pattern
}

// assertMatchCount checks the number of matches in scope.
func assertMatchCount(result *Result, assertion Assertion) error {
	matches := result.MatchesOf(assertion.Pattern)
	if len(matches) != assertion.Count {
		return &AssertionError{
			Type:     AssertMatchCount,
			Expected: fmt.Sprintf("%d matches of %s", assertion.Count, scopeName(assertion.Pattern)),
			Actual:   fmt.Sprintf("%d matches", len(matches)),
			Matches:  matches,
		}
	}
	return nil
}

// assertMatchContains checks that some match consists of exactly the
// listed events, in pattern order.
func assertMatchContains(result *Result, assertion Assertion) error {
	matches := result.MatchesOf(assertion.Pattern)
	if findMatch(matches, assertion.Events) >= 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMatchContains,
		Expected: fmt.Sprintf("match of %s with events %v", scopeName(assertion.Pattern), assertion.Events),
		Actual:   "not found",
		Matches:  matches,
	}
}

// assertMatchAbsent checks that no match consists of exactly the listed
// events.
func assertMatchAbsent(result *Result, assertion Assertion) error {
	matches := result.MatchesOf(assertion.Pattern)
	i := findMatch(matches, assertion.Events)
	if i < 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMatchAbsent,
		Expected: fmt.Sprintf("no match of %s with events %v", scopeName(assertion.Pattern), assertion.Events),
		Actual:   fmt.Sprintf("found match %s", matches[i].ID),
		Matches:  matches,
	}
}

func findMatch(matches []MatchSummary, events []int) int {
	return slices.IndexFunc(matches, func(m MatchSummary) bool {
		return slices.Equal(m.Indices(), events)
	})
}

// assertRunState reads the stored run of a pattern and validates expected
// values using subset semantics.
func assertRunState(ctx context.Context, st *store.Store, result *Result, assertion Assertion) error {
	i := slices.IndexFunc(result.Runs, func(r RunSummary) bool { return r.Pattern == assertion.Pattern })
	if i < 0 {
		return &AssertionError{
			Type:     AssertRunState,
			Expected: fmt.Sprintf("run of pattern %s", assertion.Pattern),
			Actual:   "pattern was not evaluated",
		}
	}

	run, err := st.ReadRun(ctx, result.Runs[i].RunID)
	if err != nil {
		return &AssertionError{
			Type:     AssertRunState,
			Expected: fmt.Sprintf("stored run %s", result.Runs[i].RunID),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	actual := map[string]interface{}{
		"id":           run.ID,
		"pattern":      run.Pattern,
		"pattern_hash": run.PatternHash,
		"events":       run.Events,
		"matches":      run.Matches,
		"finished":     !run.FinishedAt.IsZero(),
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertRunState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in run fields: %v", key, sortedKeys(actual)),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertRunState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// stateValuesEqual compares an expected YAML value with a run field.
// YAML integers decode as int while run totals are int64.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for run_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMatchCount:
			err = assertMatchCount(result, assertion)
		case AssertMatchContains:
			err = assertMatchContains(result, assertion)
		case AssertMatchAbsent:
			err = assertMatchAbsent(result, assertion)
		case AssertRunState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: run_state requires database context", i)
			} else {
				err = assertRunState(actx.Ctx, actx.Store, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

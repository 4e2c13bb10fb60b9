package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

// MatchSnapshot captures the stored outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type MatchSnapshot struct {
	ScenarioName string
	Runs         []RunSummary
	Matches      []MatchSummary
}

// toCanonicalMap converts a MatchSnapshot to a map[string]any for canonical JSON serialization.
func (s *MatchSnapshot) toCanonicalMap() map[string]any {
	runs := make([]any, len(s.Runs))
	for i, r := range s.Runs {
		runs[i] = map[string]any{
			"pattern": r.Pattern,
			"run_id":  r.RunID,
			"events":  r.Events,
			"matches": r.Matches,
		}
	}

	matches := make([]any, len(s.Matches))
	for i, m := range s.Matches {
		events := make([]any, len(m.Events))
		for j, e := range m.Events {
			events[j] = map[string]any{
				"index": e.Index,
				"name":  e.Name,
				"type":  e.Type,
			}
		}
		matches[i] = map[string]any{
			"id":      m.ID,
			"pattern": m.Pattern,
			"events":  events,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"runs":          runs,
		"matches":       matches,
	}
}

// MarshalSnapshot serializes the outcome of a scenario as canonical JSON.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := MatchSnapshot{
		ScenarioName: scenarioName,
		Runs:         result.Runs,
		Matches:      result.Matches,
	}
	return ir.MarshalCanonicalAny(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its matches against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check assertions, or an error if
// scenario execution fails. Test failure (via goldie) occurs if the
// matches don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

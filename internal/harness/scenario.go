package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the timestamp of offset 0 when a scenario sets no start.
const DefaultStart = "2024-01-02T10:00:00Z"

// DefaultRunID prefixes the run IDs of a scenario that sets none.
const DefaultRunID = "test-run"

// Scenario defines an end-to-end pattern test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Patterns is the directory holding the CUE pattern package.
	// Relative paths are resolved against the scenario file's directory.
	Patterns string `yaml:"patterns"`

	// Pattern restricts evaluation to one pattern of the package.
	Pattern string `yaml:"pattern,omitempty"`

	// Storage selects the partial match store layout: "sorted" (default)
	// or "unsorted".
	Storage string `yaml:"storage,omitempty"`

	// Start is the RFC 3339 timestamp event offsets count from.
	Start string `yaml:"start,omitempty"`

	// RunID prefixes the run ID of every evaluated pattern. Defaults to
	// DefaultRunID so match IDs are reproducible.
	RunID string `yaml:"run_id,omitempty"`

	// Events is the input stream in arrival order.
	Events []EventStep `yaml:"events"`

	// Assertions validate the resulting matches and runs.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one input event.
type EventStep struct {
	// Type is the event type leaves listen for.
	Type string `yaml:"type"`

	// At is the event time in seconds after the scenario start.
	// Fractions are allowed.
	At float64 `yaml:"at"`

	// Payload holds the event's attributes.
	Payload map[string]interface{} `yaml:"payload,omitempty"`
}

// Assertion validates matches or stored run state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "match_count": exactly Count matches
	// - "match_contains": some match consists of exactly Events
	// - "match_absent": no match consists of exactly Events
	// - "run_state": the run record of Pattern has the Expect values
	Type string `yaml:"type"`

	// Pattern restricts the assertion to one pattern. Required for
	// run_state, optional otherwise.
	Pattern string `yaml:"pattern,omitempty"`

	// Count is the expected number of matches (used by match_count).
	Count int `yaml:"count,omitempty"`

	// Events lists event positions in pattern order (used by
	// match_contains and match_absent).
	Events []int `yaml:"events,omitempty"`

	// Expect contains expected run fields (used by run_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertMatchCount    = "match_count"
	AssertMatchContains = "match_contains"
	AssertMatchAbsent   = "match_absent"
	AssertRunState      = "run_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative patterns path is resolved against the directory of path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Patterns != "" && !filepath.IsAbs(scenario.Patterns) {
		scenario.Patterns = filepath.Join(filepath.Dir(path), scenario.Patterns)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file of dir in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, glob := range []string{"*.yaml", "*.yml"} {
		found, err := filepath.Glob(filepath.Join(dir, glob))
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// StartTime returns the parsed start timestamp.
func (s *Scenario) StartTime() (time.Time, error) {
	start := s.Start
	if start == "" {
		start = DefaultStart
	}
	t, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return t.UTC(), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Patterns == "" {
		return fmt.Errorf("patterns directory is required")
	}
	if info, err := os.Stat(s.Patterns); err != nil || !info.IsDir() {
		return fmt.Errorf("patterns directory not found: %s", s.Patterns)
	}

	switch s.Storage {
	case "", "sorted", "unsorted":
	default:
		return fmt.Errorf("storage must be sorted or unsorted, got %q", s.Storage)
	}

	if _, err := s.StartTime(); err != nil {
		return err
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, e := range s.Events {
		if e.Type == "" {
			return fmt.Errorf("events[%d]: type is required", i)
		}
		if e.At < 0 {
			return fmt.Errorf("events[%d]: at must be non-negative", i)
		}
		if i > 0 && e.At < s.Events[i-1].At {
			return fmt.Errorf("events[%d]: at %v precedes the previous event", i, e.At)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Events)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, events int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	case AssertMatchContains, AssertMatchAbsent:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for %s", index, a.Type)
		}
		for _, idx := range a.Events {
			if idx < 0 || idx >= events {
				return fmt.Errorf("assertions[%d]: event index %d out of range [0, %d)", index, idx, events)
			}
		}
	case AssertRunState:
		if a.Pattern == "" {
			return fmt.Errorf("assertions[%d]: pattern is required for run_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for run_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

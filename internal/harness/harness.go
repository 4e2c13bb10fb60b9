package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YossiLevi4497/OpenCEP/internal/compiler"
	"github.com/YossiLevi4497/OpenCEP/internal/evaluation"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/ir"
	"github.com/YossiLevi4497/OpenCEP/internal/store"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// Harness is the test execution engine.
// It runs scenarios against an isolated store with deterministic run IDs.
type Harness struct {
	store  *store.Store
	sink   *store.Sink
	params tree.StorageParams
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load, compile and validate the CUE patterns
// 3. Evaluate each selected pattern over the scenario events
// 4. Read the stored matches and runs back
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	defs, err := loadDefinitions(scenario)
	if err != nil {
		return nil, err
	}

	events, err := buildEvents(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		sink:   store.NewSink(st),
		params: tree.StorageParams{Sorted: scenario.Storage != "unsorted"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()
	for _, d := range defs {
		runID := RunIDFor(scenario, d.Pattern.Name)
		if err := h.evaluate(ctx, d, runID, events); err != nil {
			return nil, fmt.Errorf("pattern %s: %w", d.Pattern.Name, err)
		}
		if err := h.collect(ctx, runID, result); err != nil {
			return nil, fmt.Errorf("pattern %s: %w", d.Pattern.Name, err)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// RunIDFor returns the run ID the harness gives a pattern of scenario.
func RunIDFor(scenario *Scenario, pattern string) string {
	prefix := scenario.RunID
	if prefix == "" {
		prefix = DefaultRunID
	}
	return prefix + "-" + pattern
}

// loadDefinitions compiles and validates the scenario's patterns and keeps
// the selected one, or all of them.
func loadDefinitions(scenario *Scenario) ([]evaluation.Definition, error) {
	compiled, err := compiler.LoadPatterns(scenario.Patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	if verrs := compiler.ValidateAll(compiled); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid patterns: %w", errors.Join(errs...))
	}

	var defs []evaluation.Definition
	for _, c := range compiled {
		if scenario.Pattern == "" || c.Pattern.Name == scenario.Pattern {
			defs = append(defs, c.Definition())
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("pattern %q not found in %s", scenario.Pattern, scenario.Patterns)
	}
	return defs, nil
}

// buildEvents turns the scenario's event steps into stamped events.
// The first event gets sequence number 1, so index i has Seq i+1.
func buildEvents(scenario *Scenario) ([]*event.Event, error) {
	start, err := scenario.StartTime()
	if err != nil {
		return nil, err
	}
	clock := event.NewClock()
	events := make([]*event.Event, len(scenario.Events))
	for i, step := range scenario.Events {
		payload, err := convertPayload(step.Payload)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		offset := time.Duration(decimal.NewFromFloat(step.At).Shift(9).IntPart())
		events[i] = clock.Stamp(event.New(step.Type, start.Add(offset), payload))
	}
	return events, nil
}

// convertPayload normalizes YAML-parsed values the way persisted events
// are read back: numbers become exact json.Number values.
func convertPayload(raw map[string]interface{}) (event.Payload, error) {
	if raw == nil {
		return event.Payload{}, nil
	}
	obj, err := ir.PayloadFromAny(event.Payload(raw))
	if err != nil {
		return nil, err
	}
	payload := make(event.Payload, len(obj))
	for k, v := range obj {
		payload[k] = ir.ToAny(v)
	}
	return payload, nil
}

// evaluate runs one pattern over the events, persisting its matches.
func (h *Harness) evaluate(ctx context.Context, d evaluation.Definition, runID string, events []*event.Event) error {
	job, err := d.Build(h.params, runID)
	if err != nil {
		return err
	}
	if err := h.sink.BeginRun(ctx, job); err != nil {
		return err
	}
	stats, err := evaluation.Evaluate(ctx, job, event.NewSliceStream(events...), h.sink)
	if err != nil {
		return err
	}
	if err := h.sink.EndRun(ctx, stats); err != nil {
		return err
	}
	h.logger.Info("pattern evaluated",
		"pattern", stats.Pattern,
		"run_id", runID,
		"events", stats.Events,
		"matches", stats.Matches,
	)
	return nil
}

// collect reads one run and its matches back from the store.
func (h *Harness) collect(ctx context.Context, runID string, result *Result) error {
	run, err := h.store.ReadRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}
	result.Runs = append(result.Runs, RunSummary{
		Pattern: run.Pattern,
		RunID:   run.ID,
		Events:  run.Events,
		Matches: run.Matches,
	})

	matches, err := h.store.ReadMatches(ctx, store.MatchFilter{RunID: runID})
	if err != nil {
		return err
	}
	for _, m := range matches {
		result.Matches = append(result.Matches, summarize(m))
	}
	return nil
}

func summarize(m ir.MatchRecord) MatchSummary {
	s := MatchSummary{
		ID:      m.ID,
		Pattern: m.Pattern,
		Events:  make([]MatchedEvent, len(m.Events)),
	}
	for i, e := range m.Events {
		s.Events[i] = MatchedEvent{Index: int(e.Seq - 1), Name: e.Name, Type: e.Type}
	}
	return s
}

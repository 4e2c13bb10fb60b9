package evaluation

import (
	"context"
	"sync"

	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// Result is one match delivered to a sink.
type Result struct {
	RunID string
	Match tree.Match
}

// Sink receives matches. Sinks shared by RunPatterns must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Result) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, r Result) error { return f(ctx, r) }

// CollectSink keeps every result in memory. Safe for concurrent use.
type CollectSink struct {
	mu      sync.Mutex
	results []Result
}

// Emit appends r.
func (s *CollectSink) Emit(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

// Results returns a copy of the collected results.
func (s *CollectSink) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// Matches returns the collected matches.
func (s *CollectSink) Matches() []tree.Match {
	results := s.Results()
	out := make([]tree.Match, len(results))
	for i, r := range results {
		out[i] = r.Match
	}
	return out
}

type discard struct{}

func (discard) Emit(context.Context, Result) error { return nil }

// Discard drops every match.
var Discard Sink = discard{}

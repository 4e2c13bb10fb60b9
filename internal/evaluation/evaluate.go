package evaluation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// Definition pairs a pattern with the plan to evaluate it by. A nil Plan
// selects the left-deep plan.
type Definition struct {
	Pattern *pattern.Pattern
	Plan    plan.Node
}

// Job is a tree ready to evaluate, tagged with the run it belongs to.
type Job struct {
	RunID string
	Tree  *tree.Tree
}

// Build constructs the tree of d.
func (d Definition) Build(params tree.StorageParams, runID string) (Job, error) {
	p := d.Plan
	if p == nil {
		var err error
		if p, err = plan.LeftDeep(d.Pattern); err != nil {
			return Job{}, err
		}
	}
	t, err := tree.New(p, d.Pattern, params)
	if err != nil {
		return Job{}, err
	}
	return Job{RunID: runID, Tree: t}, nil
}

// Stats summarizes one tree's run.
type Stats struct {
	Pattern string
	RunID   string
	Events  int
	Matches int
	Elapsed time.Duration
}

// Evaluate feeds every event of s to the job's tree and emits each match to
// sink as soon as it completes. At the end of the stream the tree is
// flushed, so matches held back by trailing negations are emitted too.
//
// A stream or sink error stops evaluation and is returned as a
// RuntimeError. Cancelling ctx stops evaluation with ctx.Err().
func Evaluate(ctx context.Context, job Job, s event.Stream, sink Sink) (stats Stats, err error) {
	name := job.Tree.Pattern().Name
	stats = Stats{Pattern: name, RunID: job.RunID}
	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		RecordRun(err)
	}()

	slog.Debug("evaluation starting", "pattern", name, "run_id", job.RunID)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			re := streamError(err)
			re.Pattern, re.RunID = name, job.RunID
			return stats, re
		}
		if err := process(ctx, job, e, sink, &stats); err != nil {
			return stats, err
		}
	}
	if err := emitAll(ctx, job, job.Tree.Flush(), sink, &stats); err != nil {
		return stats, err
	}
	slog.Info("evaluation finished",
		"pattern", name,
		"run_id", job.RunID,
		"events", stats.Events,
		"matches", stats.Matches,
	)
	return stats, nil
}

// process hands e to the job's tree and emits what completes.
func process(ctx context.Context, job Job, e *event.Event, sink Sink, stats *Stats) error {
	start := time.Now()
	job.Tree.HandleEvent(e)
	matches := job.Tree.Drain()
	RecordEvent(stats.Pattern, time.Since(start))
	stats.Events++
	return emitAll(ctx, job, matches, sink, stats)
}

// emitAll hands matches to sink in order and stops at the first failure.
// Only matches the sink accepted are counted.
func emitAll(ctx context.Context, job Job, matches []tree.Match, sink Sink, stats *Stats) error {
	emitted := 0
	defer func() { RecordMatches(stats.Pattern, emitted) }()
	for _, m := range matches {
		if err := sink.Emit(ctx, Result{RunID: job.RunID, Match: m}); err != nil {
			return sinkError(job, err)
		}
		emitted++
		stats.Matches++
	}
	return nil
}

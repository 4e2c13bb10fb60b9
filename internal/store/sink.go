package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/evaluation"
	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

// Sink persists every match it receives. Runs must be opened with
// BeginRun before their first match arrives. Safe for concurrent use.
type Sink struct {
	store *Store
	now   func() time.Time

	mu      sync.Mutex
	written map[string]int64
}

// NewSink returns a sink writing to s.
func NewSink(s *Store) *Sink {
	return &Sink{store: s, now: time.Now, written: make(map[string]int64)}
}

// BeginRun records the start of job's run.
func (k *Sink) BeginRun(ctx context.Context, job evaluation.Job) error {
	pat := job.Tree.Pattern()
	return k.store.WriteRun(ctx, ir.RunRecord{
		ID:          job.RunID,
		Pattern:     pat.Name,
		PatternHash: ir.PatternHash(pat.String()),
		StartedAt:   k.now(),
	})
}

// EndRun records the totals of a finished run.
func (k *Sink) EndRun(ctx context.Context, stats evaluation.Stats) error {
	return k.store.FinishRun(ctx, stats.RunID, int64(stats.Events), int64(stats.Matches), k.now())
}

// Emit converts the match to its persisted form and writes it.
func (k *Sink) Emit(ctx context.Context, r evaluation.Result) error {
	rec, err := ir.NewMatchRecord(r.RunID, r.Match)
	if err != nil {
		return err
	}
	inserted, err := k.store.WriteMatch(ctx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		slog.Debug("match already stored", "match_id", rec.ID, "run_id", r.RunID)
		return nil
	}

	k.mu.Lock()
	k.written[r.RunID]++
	k.mu.Unlock()
	return nil
}

// Written returns how many new matches were stored for runID.
func (k *Sink) Written(runID string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written[runID]
}

package evaluation

import (
	"context"
	"log/slog"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// Engine is a single-writer evaluation loop over a set of trees.
//
// Events arrive through Enqueue and are handed to every tree, in the order
// the trees were defined, by the one goroutine running Run.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Stop(): safe from any goroutine
type Engine struct {
	jobs   []Job
	stats  []Stats
	queue  *eventQueue
	sink   Sink
	runIDs RunIDGenerator
	params tree.StorageParams
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets where matches go. Default: Discard.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithStorage sets the store layout of every tree. Default: sorted.
func WithStorage(params tree.StorageParams) Option {
	return func(e *Engine) {
		e.params = params
	}
}

// New builds one tree per definition. Each tree gets its own run ID.
func New(defs []Definition, opts ...Option) (*Engine, error) {
	e := &Engine{
		queue:  newEventQueue(),
		sink:   Discard,
		runIDs: UUIDv7Generator{},
		params: tree.DefaultStorageParams(),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, d := range defs {
		job, err := d.Build(e.params, e.runIDs.Generate())
		if err != nil {
			return nil, err
		}
		e.jobs = append(e.jobs, job)
		e.stats = append(e.stats, Stats{Pattern: job.Tree.Pattern().Name, RunID: job.RunID})
	}
	return e, nil
}

// Jobs returns the engine's trees with their run IDs.
func (e *Engine) Jobs() []Job {
	out := make([]Job, len(e.jobs))
	copy(out, e.jobs)
	return out
}

// Enqueue submits an event. Returns an ENGINE_STOPPED error after Stop.
func (e *Engine) Enqueue(ev *event.Event) error {
	if !e.queue.Enqueue(ev) {
		return &RuntimeError{Code: ErrCodeEngineStopped, Message: "engine no longer accepts events"}
	}
	return nil
}

// Stop closes the queue. Run evaluates what is already queued, flushes
// every tree and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Run processes events until Stop is called or ctx is cancelled.
//
// Sink failures are logged with the event that caused them and processing
// continues; one bad sink write must not stall the other trees.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "patterns", len(e.jobs))
	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.dispatch(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Drained() {
				e.flush(ctx)
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev *event.Event) {
	for i, job := range e.jobs {
		if err := process(ctx, job, ev, e.sink, &e.stats[i]); err != nil {
			slog.Error("event processing failed",
				"error", err,
				"pattern", e.stats[i].Pattern,
				"run_id", job.RunID,
				"event_type", ev.Type,
				"seq", ev.Seq,
			)
		}
	}
}

// flush releases held-back matches at end of input and closes every run.
func (e *Engine) flush(ctx context.Context) {
	for i, job := range e.jobs {
		err := emitAll(ctx, job, job.Tree.Flush(), e.sink, &e.stats[i])
		if err != nil {
			slog.Error("flush failed", "error", err, "pattern", e.stats[i].Pattern, "run_id", job.RunID)
		}
		RecordRun(err)
	}
}

// Stats returns per-tree counters. Only meaningful after Run returns.
func (e *Engine) Stats() []Stats {
	out := make([]Stats, len(e.stats))
	copy(out, e.stats)
	return out
}

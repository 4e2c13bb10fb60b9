package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YossiLevi4497/OpenCEP/internal/compiler"
	"github.com/YossiLevi4497/OpenCEP/internal/evaluation"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/ir"
	"github.com/YossiLevi4497/OpenCEP/internal/store"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Events      string   // JSON Lines file, "-" for stdin
	Database    string   // optional SQLite database for matches
	Patterns    []string // restrict evaluation to these patterns
	Unsorted    bool     // use unsorted partial-match storage
	Parallel    bool     // one goroutine per pattern
	MetricsAddr string   // serve Prometheus metrics here while running

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs evaluation.RunIDGenerator
}

// RunSummary is one pattern's totals in the run command's output.
type RunSummary struct {
	Pattern string `json:"pattern"`
	RunID   string `json:"run_id"`
	Events  int    `json:"events"`
	Matches int    `json:"matches"`
}

// RunResult is the JSON output of the run command.
type RunResult struct {
	Runs    []RunSummary     `json:"runs"`
	Matches []ir.MatchRecord `json:"matches"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <patterns-dir>",
		Short: "Evaluate patterns over an event stream",
		Long: `Evaluate the patterns of a directory over a JSON Lines event stream.

Each line is one event:

  {"type":"GOOG","timestamp":"2024-01-02T10:00:00Z","payload":{"price":10}}

Matches are printed as they complete. With --db every run and match is
stored in SQLite for later inspection and replay.

Example:
  opencep run ./patterns --events stocks.jsonl
  tail -f events.jsonl | opencep run ./patterns --events - --db cep.db --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "", "JSON Lines event file, - for stdin (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for runs and matches")
	cmd.Flags().StringSliceVar(&opts.Patterns, "pattern", nil, "only evaluate these patterns")
	cmd.Flags().BoolVar(&opts.Unsorted, "unsorted-storage", false, "keep partial matches in arrival order")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "evaluate each pattern on its own goroutine")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func runEvaluation(opts *RunOptions, patternsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	slog.Info("loading patterns", "dir", patternsDir)
	defs, err := loadDefinitions(patternsDir, opts.Patterns)
	if err != nil {
		return outputRunError(formatter, "failed to load patterns", err)
	}
	slog.Info("patterns loaded", "count", len(defs))

	input, closeInput, err := openEvents(opts.Events, cmd.InOrStdin())
	if err != nil {
		return outputRunError(formatter, "failed to open events", err)
	}
	defer closeInput()

	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		if st, err = store.Open(opts.Database); err != nil {
			return outputRunError(formatter, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	if opts.MetricsAddr != "" {
		stopMetrics := serveMetrics(opts.MetricsAddr)
		defer stopMetrics()
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = evaluation.UUIDv7Generator{}
	}
	params := tree.StorageParams{Sorted: !opts.Unsorted}
	printer := newMatchPrinter(formatter)
	r := &runner{store: st, printer: printer}
	stream := event.NewJSONLReader(input, nil)

	var stats []evaluation.Stats
	if opts.Parallel {
		stats, err = r.parallel(ctx, defs, params, runIDs, stream)
	} else {
		stats, err = r.sequential(ctx, defs, params, runIDs, stream)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if evaluation.IsStreamError(err) {
			return outputRunError(formatter, "failed to read events", err)
		}
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}

	slog.Info("evaluation finished", "patterns", len(stats))
	return printer.finish(stats)
}

// loadDefinitions compiles and validates the patterns of dir, keeping only
// the named ones when names is non-empty.
func loadDefinitions(dir string, names []string) ([]evaluation.Definition, error) {
	loadResult, loadErrors := LoadPatterns(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if errs := compiler.ValidateAll(loadResult.Patterns); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid patterns: %w", errors.Join(joined...))
	}

	byName := make(map[string]compiler.Compiled, len(loadResult.Patterns))
	for _, c := range loadResult.Patterns {
		byName[c.Pattern.Name] = c
	}
	if len(names) == 0 {
		defs := make([]evaluation.Definition, len(loadResult.Patterns))
		for i, c := range loadResult.Patterns {
			defs[i] = c.Definition()
		}
		return defs, nil
	}
	defs := make([]evaluation.Definition, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("pattern %q not found in %s", name, dir)}
		}
		defs = append(defs, c.Definition())
	}
	return defs, nil
}

// openEvents opens path, or returns stdin for "-".
func openEvents(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// serveMetrics starts a /metrics endpoint and returns its shutdown func.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", evaluation.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runner evaluates jobs and records their runs when a store is configured.
type runner struct {
	store   *store.Store
	printer *matchPrinter
}

func (r *runner) sink() (evaluation.Sink, *store.Sink) {
	if r.store == nil {
		return r.printer, nil
	}
	stored := store.NewSink(r.store)
	return evaluation.SinkFunc(func(ctx context.Context, res evaluation.Result) error {
		if err := stored.Emit(ctx, res); err != nil {
			return err
		}
		return r.printer.Emit(ctx, res)
	}), stored
}

func (r *runner) begin(ctx context.Context, stored *store.Sink, jobs []evaluation.Job) error {
	for _, job := range jobs {
		slog.Debug("run started", "pattern", job.Tree.Pattern().Name, "run_id", job.RunID, "tree", job.Tree.Summary())
		if stored == nil {
			continue
		}
		if err := stored.BeginRun(ctx, job); err != nil {
			return fmt.Errorf("recording run %s: %w", job.RunID, err)
		}
	}
	return nil
}

func (r *runner) end(stored *store.Sink, stats []evaluation.Stats) {
	if stored == nil {
		return
	}
	// The run context may already be cancelled; totals are still recorded.
	ctx := context.Background()
	for _, s := range stats {
		if err := stored.EndRun(ctx, s); err != nil {
			slog.Error("recording run totals failed", "error", err, "run_id", s.RunID)
		}
	}
}

// sequential evaluates every tree on the engine's single event loop.
func (r *runner) sequential(ctx context.Context, defs []evaluation.Definition, params tree.StorageParams,
	runIDs evaluation.RunIDGenerator, stream event.Stream) ([]evaluation.Stats, error) {
	sink, stored := r.sink()
	eng, err := evaluation.New(defs,
		evaluation.WithSink(sink),
		evaluation.WithRunIDGenerator(runIDs),
		evaluation.WithStorage(params),
	)
	if err != nil {
		return nil, err
	}
	if err := r.begin(ctx, stored, eng.Jobs()); err != nil {
		return nil, err
	}

	// The reader may block on stdin, so it is not waited for once the
	// engine has returned.
	readErr := make(chan error, 1)
	go func() {
		defer eng.Stop()
		for {
			e, err := stream.Next()
			if errors.Is(err, io.EOF) {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- &evaluation.RuntimeError{Code: evaluation.ErrCodeStreamFailed, Message: "reading events", Err: err}
				return
			}
			if err := eng.Enqueue(e); err != nil {
				readErr <- nil
				return
			}
		}
	}()

	runErr := eng.Run(ctx)
	stats := eng.Stats()
	r.end(stored, stats)
	if runErr != nil {
		return stats, runErr
	}
	return stats, <-readErr
}

// parallel evaluates each tree on its own goroutine.
func (r *runner) parallel(ctx context.Context, defs []evaluation.Definition, params tree.StorageParams,
	runIDs evaluation.RunIDGenerator, stream event.Stream) ([]evaluation.Stats, error) {
	sink, stored := r.sink()
	jobs := make([]evaluation.Job, len(defs))
	for i, d := range defs {
		job, err := d.Build(params, runIDs.Generate())
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}
	if err := r.begin(ctx, stored, jobs); err != nil {
		return nil, err
	}

	stats, err := evaluation.RunPatterns(ctx, jobs, stream, sink)
	r.end(stored, stats)
	return stats, err
}

// matchPrinter writes matches as they arrive. In JSON mode they are
// collected and written with the final summary. Safe for concurrent use.
type matchPrinter struct {
	formatter *OutputFormatter

	mu      sync.Mutex
	matches []ir.MatchRecord
}

func newMatchPrinter(formatter *OutputFormatter) *matchPrinter {
	return &matchPrinter{formatter: formatter}
}

func (p *matchPrinter) Emit(_ context.Context, r evaluation.Result) error {
	rec, err := ir.NewMatchRecord(r.RunID, r.Match)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.formatter.Format == "json" {
		p.matches = append(p.matches, rec)
		return nil
	}
	fmt.Fprintf(p.formatter.Writer, "match %s %s\n", truncateID(rec.ID), r.Match)
	return nil
}

func (p *matchPrinter) finish(stats []evaluation.Stats) error {
	runs := make([]RunSummary, len(stats))
	total := 0
	for i, s := range stats {
		runs[i] = RunSummary{Pattern: s.Pattern, RunID: s.RunID, Events: s.Events, Matches: s.Matches}
		total += s.Matches
	}

	if p.formatter.Format == "json" {
		p.mu.Lock()
		matches := p.matches
		p.mu.Unlock()
		if matches == nil {
			matches = []ir.MatchRecord{}
		}
		return p.formatter.Success(RunResult{Runs: runs, Matches: matches})
	}

	w := p.formatter.Writer
	fmt.Fprintf(w, "\n✓ Evaluated %d pattern(s): %d match(es)\n", len(runs), total)
	for _, s := range runs {
		fmt.Fprintf(w, "  %s  run=%s  events=%d  matches=%d\n", s.Pattern, s.RunID, s.Events, s.Matches)
	}
	return nil
}

func outputRunError(formatter *OutputFormatter, message string, err error) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	_ = formatter.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, message, err)
}

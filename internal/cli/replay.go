package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/YossiLevi4497/OpenCEP/internal/evaluation"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/ir"
	"github.com/YossiLevi4497/OpenCEP/internal/store"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Events   string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID          string   `json:"run_id"`
	Pattern        string   `json:"pattern"`
	Skipped        string   `json:"skipped,omitempty"`
	StoredEvents   int64    `json:"stored_events"`
	ReplayedEvents int64    `json:"replayed_events"`
	StoredMatches  int      `json:"stored_matches"`
	ReplayMatches  int      `json:"replayed_matches"`
	Missing        []string `json:"missing,omitempty"` // stored but not reproduced
	Extra          []string `json:"extra,omitempty"`   // reproduced but never stored
	PatternChanged bool     `json:"pattern_changed"`
	Deterministic  bool     `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <patterns-dir>",
		Short: "Re-evaluate stored runs and verify their matches",
		Long: `Re-evaluate the runs stored in a database over the same events and
check that exactly the stored matches are produced again.

Match IDs are derived from the run ID, the pattern name and the sequence
numbers of the matched events, so a replay under the stored run ID must
reproduce every stored ID and no other.

Exit codes:
  0 - All runs reproduced their matches
  1 - Replay diverged (missing or extra matches, event count changed)
  2 - Command error (database not found, invalid patterns, etc.)

Examples:
  opencep replay ./patterns --db ./cep.db --events stocks.jsonl
  opencep replay ./patterns --db ./cep.db --events stocks.jsonl --run 0190...
  opencep replay ./patterns --db ./cep.db --events stocks.jsonl --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Events, "events", "", "JSON Lines event file the runs were evaluated on (required)")
	_ = cmd.MarkFlagRequired("events")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, patternsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	defs, err := loadDefinitions(patternsDir, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load patterns", err)
	}
	byName := make(map[string]evaluation.Definition, len(defs))
	for _, d := range defs {
		byName[d.Pattern.Name] = d
	}

	events, err := readEvents(opts.Events, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []ir.RunRecord
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", opts.RunID), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []ir.RunRecord{run}
	} else if runs, err = st.ReadRuns(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		def, ok := byName[run.Pattern]
		if !ok {
			result.Runs = append(result.Runs, ReplayRunResult{
				RunID:         run.ID,
				Pattern:       run.Pattern,
				Skipped:       fmt.Sprintf("pattern not found in %s", patternsDir),
				Deterministic: true,
			})
			continue
		}

		runResult, err := replayRun(ctx, st, run, def, events)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// readEvents reads the whole event file so every run replays the same
// sequence numbers.
func readEvents(path string, stdin io.Reader) ([]*event.Event, error) {
	input, closeInput, err := openEvents(path, stdin)
	if err != nil {
		return nil, err
	}
	defer closeInput()
	return event.Collect(event.NewJSONLReader(input, nil))
}

// replayRun re-evaluates one stored run under its own run ID and compares
// the match IDs it produces with the stored ones.
func replayRun(ctx context.Context, st *store.Store, run ir.RunRecord, def evaluation.Definition, events []*event.Event) (ReplayRunResult, error) {
	job, err := def.Build(tree.DefaultStorageParams(), run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	sink := &evaluation.CollectSink{}
	stats, err := evaluation.Evaluate(ctx, job, event.NewSliceStream(events...), sink)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("evaluate: %w", err)
	}

	replayed := make([]string, 0, stats.Matches)
	for _, m := range sink.Matches() {
		rec, err := ir.NewMatchRecord(run.ID, m)
		if err != nil {
			return ReplayRunResult{}, err
		}
		replayed = append(replayed, rec.ID)
	}

	stored, err := st.ReadMatches(ctx, store.MatchFilter{RunID: run.ID})
	if err != nil {
		return ReplayRunResult{}, err
	}
	storedIDs := make([]string, len(stored))
	for i, m := range stored {
		storedIDs[i] = m.ID
	}

	result := ReplayRunResult{
		RunID:          run.ID,
		Pattern:        run.Pattern,
		StoredEvents:   run.Events,
		ReplayedEvents: int64(stats.Events),
		StoredMatches:  len(storedIDs),
		ReplayMatches:  len(replayed),
		Missing:        difference(storedIDs, replayed),
		Extra:          difference(replayed, storedIDs),
		PatternChanged: run.PatternHash != ir.PatternHash(def.Pattern.String()),
	}
	// An unfinished run has no event total to compare against.
	eventsAgree := run.FinishedAt.IsZero() || run.Events == result.ReplayedEvents
	result.Deterministic = eventsAgree && result.reproduced()

	if result.PatternChanged {
		slog.Warn("pattern changed since run", "run_id", run.ID, "pattern", run.Pattern)
	}
	return result, nil
}

// difference returns the IDs of a that are not in b, sorted.
// reproduced reports whether the replay found exactly the stored matches.
// Counts are compared as well as IDs so a match lost to an ID collision
// still shows up as divergence.
func (r ReplayRunResult) reproduced() bool {
	return r.StoredMatches == r.ReplayMatches && len(r.Missing) == 0 && len(r.Extra) == 0
}

func difference(a, b []string) []string {
	var out []string
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DIVERGED",
			Message: "replay diverged from stored matches",
		}
	}

	if err := writeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Divergence = exit code 1
		return NewExitError(ExitFailure, "replay diverged from stored matches")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		if run.Skipped != "" {
			fmt.Fprintf(w, "- Run: %s (%s)\n", run.RunID, run.Pattern)
			fmt.Fprintf(w, "  Skipped: %s\n\n", run.Skipped)
			continue
		}

		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Pattern)
		fmt.Fprintf(w, "  Matches: %d stored, %d replayed\n", run.StoredMatches, run.ReplayMatches)
		if verbose || run.StoredEvents != run.ReplayedEvents {
			fmt.Fprintf(w, "  Events: %d stored, %d replayed\n", run.StoredEvents, run.ReplayedEvents)
		}
		for _, id := range run.Missing {
			fmt.Fprintf(w, "  Missing: %s\n", truncateID(id))
		}
		for _, id := range run.Extra {
			fmt.Fprintf(w, "  Extra: %s\n", truncateID(id))
		}
		if run.PatternChanged {
			fmt.Fprintln(w, "  Warning: pattern definition changed since this run")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs reproduced their matches")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from stored matches")
	// Divergence = exit code 1
	return NewExitError(ExitFailure, "replay diverged from stored matches")
}

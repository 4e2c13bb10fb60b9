package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
	"github.com/YossiLevi4497/OpenCEP/internal/store"
)

// MatchesOptions holds flags for the matches command.
type MatchesOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - filter to one run
	Pattern  string // optional - filter to one pattern
	Limit    int
	Runs     bool // list runs instead of matches
}

// MatchEvent is one event of a listed match.
type MatchEvent struct {
	Seq       int64                  `json:"seq"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// MatchEntry is one stored match.
type MatchEntry struct {
	ID      string       `json:"id"`
	RunID   string       `json:"run_id"`
	Pattern string       `json:"pattern"`
	First   time.Time    `json:"first"`
	Last    time.Time    `json:"last"`
	Events  []MatchEvent `json:"events"`
}

// MatchesResult holds the complete matches output.
type MatchesResult struct {
	Matches []MatchEntry   `json:"matches"`
	Stats   MatchesStats   `json:"stats"`
	Runs    []ir.RunRecord `json:"runs,omitempty"`
}

// MatchesStats holds summary statistics for the listing.
type MatchesStats struct {
	Matches  int `json:"matches"`
	Patterns int `json:"patterns"`
	Runs     int `json:"runs"`
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List stored matches",
		Long: `List the matches stored by "opencep run --db".

Matches are ordered by the sequence number of their last event, so the
listing follows the order in which they completed.

Examples:
  opencep matches --db ./cep.db
  opencep matches --db ./cep.db --pattern rising --limit 10
  opencep matches --db ./cep.db --runs
  opencep matches --db ./cep.db --run 0190... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatches(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "filter to one run ID")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "filter to one pattern")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of matches (0 = all)")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list runs instead of matches")

	return cmd
}

func runMatches(opts *MatchesOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Runs {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		if opts.Format == "json" {
			return outputMatchesJSON(cmd.OutOrStdout(), MatchesResult{
				Matches: []MatchEntry{},
				Runs:    runs,
				Stats:   MatchesStats{Runs: len(runs)},
			})
		}
		outputRunsText(cmd.OutOrStdout(), runs)
		return nil
	}

	records, err := st.ReadMatches(ctx, store.MatchFilter{
		RunID:   opts.RunID,
		Pattern: opts.Pattern,
		Limit:   opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read matches", err)
	}

	result := buildMatchesResult(records)
	if opts.Format == "json" {
		return outputMatchesJSON(cmd.OutOrStdout(), result)
	}
	return outputMatchesText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildMatchesResult converts stored records for display.
func buildMatchesResult(records []ir.MatchRecord) MatchesResult {
	result := MatchesResult{Matches: make([]MatchEntry, 0, len(records))}
	patterns := make(map[string]bool)
	runs := make(map[string]bool)

	for _, rec := range records {
		entry := MatchEntry{
			ID:      rec.ID,
			RunID:   rec.RunID,
			Pattern: rec.Pattern,
			First:   rec.First,
			Last:    rec.Last,
			Events:  make([]MatchEvent, len(rec.Events)),
		}
		for i, e := range rec.Events {
			entry.Events[i] = MatchEvent{
				Seq:       e.Seq,
				Name:      e.Name,
				Type:      e.Type,
				Timestamp: e.Timestamp,
				Payload:   irObjectToMap(e.Payload),
			}
		}
		result.Matches = append(result.Matches, entry)
		patterns[rec.Pattern] = true
		runs[rec.RunID] = true
	}

	result.Stats = MatchesStats{
		Matches:  len(result.Matches),
		Patterns: len(patterns),
		Runs:     len(runs),
	}
	return result
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]interface{} {
	if len(obj) == 0 {
		return nil
	}
	m, _ := ir.ToAny(obj).(map[string]interface{})
	return m
}

// outputMatchesJSON outputs the listing as JSON.
func outputMatchesJSON(w io.Writer, result MatchesResult) error {
	return writeResponse(w, CLIResponse{
		Status: "ok",
		Data:   result,
	})
}

// outputMatchesText outputs the listing as text.
func outputMatchesText(w io.Writer, result MatchesResult, verbose bool) error {
	if len(result.Matches) == 0 {
		fmt.Fprintln(w, "No matches found")
		return nil
	}

	for _, m := range result.Matches {
		fmt.Fprintf(w, "%s  %s  run=%s\n", truncateID(m.ID), m.Pattern, truncateID(m.RunID))
		for _, e := range m.Events {
			fmt.Fprintf(w, "  [%d] %s:%s @ %s\n", e.Seq, e.Name, e.Type, e.Timestamp.Format(time.RFC3339Nano))
			if verbose && len(e.Payload) > 0 {
				fmt.Fprintf(w, "       Payload: %s\n", formatArgs(e.Payload))
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Matches:  %d\n", result.Stats.Matches)
	fmt.Fprintf(w, "  Patterns: %d\n", result.Stats.Patterns)
	fmt.Fprintf(w, "  Runs:     %d\n", result.Stats.Runs)
	return nil
}

// outputRunsText lists runs as text.
func outputRunsText(w io.Writer, runs []ir.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  events=%d  matches=%d  %s\n",
			r.ID, r.Pattern, r.Events, r.Matches, runStatus(r))
	}
}

// runStatus returns a human-readable run status.
func runStatus(r ir.RunRecord) string {
	if r.FinishedAt.IsZero() {
		return "Incomplete"
	}
	return "Finished " + r.FinishedAt.Format(time.RFC3339)
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case json.Number:
		return val.String()
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

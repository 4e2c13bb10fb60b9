package harness

// MatchedEvent is one event of a match, identified by its position in the
// scenario's events list.
type MatchedEvent struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

// MatchSummary is a stored match as the harness reports it.
type MatchSummary struct {
	ID      string         `json:"id"`
	Pattern string         `json:"pattern"`
	Events  []MatchedEvent `json:"events"`
}

// Indices returns the event positions of the match in pattern order.
func (m MatchSummary) Indices() []int {
	out := make([]int, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Index
	}
	return out
}

// RunSummary holds the stored totals of one pattern's run.
type RunSummary struct {
	Pattern string `json:"pattern"`
	RunID   string `json:"run_id"`
	Events  int64  `json:"events"`
	Matches int64  `json:"matches"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Matches holds every stored match, grouped by pattern in definition
	// order and ordered by completion within a pattern.
	Matches []MatchSummary `json:"matches"`

	// Runs holds one entry per evaluated pattern.
	Runs []RunSummary `json:"runs"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Matches: []MatchSummary{},
		Runs:    []RunSummary{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// MatchesOf returns the matches of one pattern, or all matches when
// pattern is empty.
func (r *Result) MatchesOf(pattern string) []MatchSummary {
	if pattern == "" {
		return r.Matches
	}
	var out []MatchSummary
	for _, m := range r.Matches {
		if m.Pattern == pattern {
			out = append(out, m)
		}
	}
	return out
}

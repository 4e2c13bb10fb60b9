package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

func seedMatches(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	createTestRun(t, s, "run-1", "rising")
	createTestRun(t, s, "run-2", "falling")

	for _, m := range []ir.MatchRecord{
		createTestMatch("run-1", "rising", 4, 6),
		createTestMatch("run-1", "rising", 1, 2),
		createTestMatch("run-1", "rising", 2, 6),
		createTestMatch("run-2", "falling", 3, 5),
	} {
		if _, err := s.WriteMatch(ctx, m); err != nil {
			t.Fatalf("WriteMatch() failed: %v", err)
		}
	}
}

func matchSeqs(matches []ir.MatchRecord) [][]int64 {
	out := make([][]int64, len(matches))
	for i, m := range matches {
		out[i] = m.Seqs()
	}
	return out
}

func TestReadMatches_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	seedMatches(t, s)

	got, err := s.ReadMatches(context.Background(), MatchFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("ReadMatches() failed: %v", err)
	}

	// last_seq first, then first_seq.
	want := [][]int64{{1, 2}, {2, 6}, {4, 6}}
	if !reflect.DeepEqual(matchSeqs(got), want) {
		t.Errorf("order = %v, want %v", matchSeqs(got), want)
	}
}

func TestReadMatches_Filters(t *testing.T) {
	s := createTestStore(t)
	seedMatches(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter MatchFilter
		want   int
	}{
		{"all", MatchFilter{}, 4},
		{"by run", MatchFilter{RunID: "run-2"}, 1},
		{"by pattern", MatchFilter{Pattern: "rising"}, 3},
		{"run and pattern disagree", MatchFilter{RunID: "run-2", Pattern: "rising"}, 0},
		{"limit", MatchFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ReadMatches(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ReadMatches() failed: %v", err)
			}
			if got == nil {
				t.Fatal("ReadMatches() returned nil, want empty slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReadMatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "rising")

	m := createTestMatch("run-1", "rising", 7, 9)
	if _, err := s.WriteMatch(ctx, m); err != nil {
		t.Fatalf("WriteMatch() failed: %v", err)
	}

	got, err := s.ReadMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("ReadMatch() failed: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("ReadMatch() = %+v, want %+v", got, m)
	}
}

func TestReadMatch_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadMatch(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadMatch() error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ReadRuns(ctx)
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ReadRuns() on empty store = %v, want empty slice", empty)
	}

	createTestRun(t, s, "run-b", "p")
	createTestRun(t, s, "run-a", "p")

	runs, err := s.ReadRuns(ctx)
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Errorf("ReadRuns() = %+v, want run-a then run-b", runs)
	}
	if runs[0].PatternHash != ir.PatternHash("p") {
		t.Errorf("pattern_hash = %q", runs[0].PatternHash)
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

var epoch = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id, pattern string) ir.RunRecord {
	t.Helper()
	run := ir.RunRecord{
		ID:          id,
		Pattern:     pattern,
		PatternHash: ir.PatternHash(pattern),
		StartedAt:   epoch,
	}
	if err := s.WriteRun(context.Background(), run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	return run
}

// createTestMatch builds a match over events with the given sequence
// numbers, one second apart starting at epoch+seq seconds.
func createTestMatch(runID, pattern string, seqs ...int64) ir.MatchRecord {
	events := make([]ir.EventRecord, len(seqs))
	for i, seq := range seqs {
		events[i] = ir.EventRecord{
			Seq:       seq,
			Type:      "T",
			Name:      string(rune('a' + i)),
			Timestamp: epoch.Add(time.Duration(seq) * time.Second),
			Payload:   ir.IRObject{"price": ir.IRInt(seq * 10)},
		}
	}
	m := ir.MatchRecord{
		RunID:   runID,
		Pattern: pattern,
		First:   events[0].Timestamp,
		Last:    events[len(events)-1].Timestamp,
		Events:  events,
	}
	m.ID = ir.MustMatchID(runID, pattern, m.Refs())
	return m
}

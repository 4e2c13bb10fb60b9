package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, pattern, pattern_hash, started_at, finished_at, events_total, matches_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Pattern,
		run.PatternHash,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Events,
		run.Matches,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the totals of a completed run.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID string, events, matches int64, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, events_total = ?, matches_total = ?
		WHERE id = ?
	`, formatTime(finishedAt), events, matches, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// WriteMatch inserts a match record and reports whether a new row was
// written. A match whose ID is already stored is silently ignored.
//
// The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteMatch(ctx context.Context, m ir.MatchRecord) (inserted bool, err error) {
	if len(m.Events) == 0 {
		return false, fmt.Errorf("write match %s: no events", m.ID)
	}
	eventsJSON, err := marshalEvents(m.Events)
	if err != nil {
		return false, fmt.Errorf("write match: %w", err)
	}

	firstSeq, lastSeq := seqBounds(m.Events)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches
		(id, run_id, pattern, first_ts, last_ts, first_seq, last_seq, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.RunID,
		m.Pattern,
		formatTime(m.First),
		formatTime(m.Last),
		firstSeq,
		lastSeq,
		eventsJSON,
	)
	if err != nil {
		return false, fmt.Errorf("write match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write match: %w", err)
	}
	return n > 0, nil
}

func seqBounds(events []ir.EventRecord) (lo, hi int64) {
	lo, hi = events[0].Seq, events[0].Seq
	for _, e := range events[1:] {
		if e.Seq < lo {
			lo = e.Seq
		}
		if e.Seq > hi {
			hi = e.Seq
		}
	}
	return lo, hi
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

// MatchFilter narrows ReadMatches. Empty fields match everything.
type MatchFilter struct {
	RunID   string
	Pattern string
	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

const matchColumns = `id, run_id, pattern, first_ts, last_ts, events`

// ReadMatches returns the stored matches accepted by f.
// Results are ordered by last_seq ASC, first_seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadMatches(ctx context.Context, f MatchFilter) ([]ir.MatchRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Pattern != "" {
		where = append(where, "pattern = ?")
		args = append(args, f.Pattern)
	}

	query := "SELECT " + matchColumns + " FROM matches"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_seq ASC, first_seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []ir.MatchRecord{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// ReadMatch retrieves a single match by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadMatch(ctx context.Context, id string) (ir.MatchRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id)
	return scanMatch(row)
}

// CountMatches returns the number of matches stored for a run.
func (s *Store) CountMatches(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

const runColumns = `id, pattern, pattern_hash, started_at, finished_at, events_total, matches_total`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	return scanRun(row)
}

// ReadRuns returns every run ordered by started_at ASC, id ASC COLLATE BINARY.
func (s *Store) ReadRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at ASC, id COLLATE BINARY ASC")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(sc scanner) (ir.MatchRecord, error) {
	var (
		m                     ir.MatchRecord
		firstTS, lastTS, data string
	)
	if err := sc.Scan(&m.ID, &m.RunID, &m.Pattern, &firstTS, &lastTS, &data); err != nil {
		if err == sql.ErrNoRows {
			return ir.MatchRecord{}, err
		}
		return ir.MatchRecord{}, fmt.Errorf("scan match: %w", err)
	}

	var err error
	if m.First, err = parseTime(firstTS); err != nil {
		return ir.MatchRecord{}, err
	}
	if m.Last, err = parseTime(lastTS); err != nil {
		return ir.MatchRecord{}, err
	}
	if m.Events, err = unmarshalEvents(data); err != nil {
		return ir.MatchRecord{}, fmt.Errorf("match %s: %w", m.ID, err)
	}
	return m, nil
}

func scanRun(sc scanner) (ir.RunRecord, error) {
	var (
		r                 ir.RunRecord
		started, finished string
	)
	err := sc.Scan(&r.ID, &r.Pattern, &r.PatternHash, &started, &finished, &r.Events, &r.Matches)
	if err != nil {
		if err == sql.ErrNoRows {
			return ir.RunRecord{}, err
		}
		return ir.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return ir.RunRecord{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return ir.RunRecord{}, err
	}
	return r, nil
}

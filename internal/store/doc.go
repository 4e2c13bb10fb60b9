// Package store provides SQLite-backed durable storage for match logs.
//
// The store is append-only and holds two tables:
//   - runs: one row per evaluation of one pattern, with its pattern hash
//   - matches: every full match a run produced, keyed by content-addressed ID
//
// # Idempotency
//
// Match IDs are computed by ir.MatchID from the run, the pattern and the
// event sequence numbers. Writing the same match twice is a no-op, so a
// re-run over a persisted stream never duplicates rows.
//
// # Deterministic Query Results
//
// Match queries are ordered by last_seq ASC, first_seq ASC, id ASC COLLATE
// BINARY. Two reads of the same run always agree.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: A match must reference a stored run
package store

package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []string{
	// pattern-filtered reads
	`CREATE INDEX IF NOT EXISTS idx_matches_pattern ON matches(pattern, last_seq)`,
}

var currentSchemaVersion = len(migrations)

// connParams are applied by the sqlite3 driver on every new connection.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the SQLite match log: one row per run and one per match.
type Store struct {
	db *sql.DB
}

// Open opens the match log at path, creating and migrating it as needed.
// Opening an existing log is safe and leaves its contents untouched.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open match log: %w", err)
	}
	// One connection serializes writers; sqlite3 would otherwise return
	// SQLITE_BUSY under concurrent sinks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open match log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. It is a no-op on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for ; version < len(migrations); version++ {
		if err := migrate(db, version); err != nil {
			return err
		}
	}
	return nil
}

// migrate applies migrations[from] and bumps user_version in one transaction.
func migrate(db *sql.DB, from int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", from+1, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrations[from]); err != nil {
		return fmt.Errorf("migrate to v%d: %w", from+1, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", from+1)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", from+1, err)
	}
	return tx.Commit()
}

// verifyPragma reports an error unless PRAGMA name returns expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

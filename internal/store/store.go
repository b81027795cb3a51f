// Package store provides SQLite-backed persistence for conversations
// and the user's domain records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist or is not owned
// by the requesting user. Callers must not distinguish the two cases.
var ErrNotFound = errors.New("not found")

// Store owns the database handle shared by all record types.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		website TEXT,
		linkedin TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_companies_user ON companies(user_id, name);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		linkedin TEXT,
		company_id TEXT REFERENCES companies(id) ON DELETE SET NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);

	CREATE TABLE IF NOT EXISTS job_applications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		job_url TEXT,
		company_id TEXT REFERENCES companies(id) ON DELETE SET NULL,
		contact_id TEXT REFERENCES contacts(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		applied_at TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_applications_user ON job_applications(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS experiences (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		location TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		current INTEGER NOT NULL DEFAULT 0,
		description TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_experiences_user ON experiences(user_id, start_date);

	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS experience_skills (
		experience_id TEXT NOT NULL REFERENCES experiences(id) ON DELETE CASCADE,
		skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		PRIMARY KEY (experience_id, skill_id)
	);
	`)
	return err
}

// Timestamps are stored as RFC 3339 text with a fixed-width nanosecond
// fraction so lexicographic ordering matches chronological ordering.
// RFC3339Nano would trim trailing zeros and break that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

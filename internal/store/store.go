// Package store persists the question-answering transcript. Each session has
// its own ordered thread of user and assistant messages that survives process
// restarts and can be fed back to the chat model as history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/54b3r/docrag-go/internal/sqlitedb"
)

// DefaultSession is the session key used when a caller does not name one.
const DefaultSession = "default"

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser is a question asked by the user.
	RoleUser Role = "user"
	// RoleAssistant is an answer produced by the chat model.
	RoleAssistant Role = "assistant"
)

// ErrInvalidRole is returned when a message is appended with a role other
// than RoleUser or RoleAssistant.
var ErrInvalidRole = errors.New("invalid role")

// Valid reports whether r is a role the transcript accepts.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is a single turn in a transcript.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptStore persists and retrieves transcripts keyed by session.
// Implementations must be safe for concurrent use.
type TranscriptStore interface {
	// Append persists a single message at the end of the session transcript.
	Append(ctx context.Context, session string, role Role, content string) error
	// Recent returns the most recent n messages of the session, ordered
	// oldest-first so they can be prepended to the model messages directly.
	// If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, session string, n int) ([]Message, error)
	// All returns the whole session transcript, oldest-first.
	All(ctx context.Context, session string) ([]Message, error)
	// Clear removes every message of the session.
	Clear(ctx context.Context, session string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a TranscriptStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns ~/.docrag/history.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	dir, err := sqlitedb.DataDir()
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// schema lists the transcript migrations in order. Append only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transcript (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_transcript_session
    ON transcript (session, id);`,
}

// Open opens (or creates) a SQLiteStore at the given path and brings its
// schema up to date. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append persists a single message for the given session.
func (s *SQLiteStore) Append(ctx context.Context, session string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("store: append: %w: %q", ErrInvalidRole, role)
	}
	const q = `INSERT INTO transcript (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, session, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the session, ordered
// oldest-first. The inner query selects the tail, the outer re-orders it.
func (s *SQLiteStore) Recent(ctx context.Context, session string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   transcript
    WHERE  session = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	return s.query(ctx, "recent", q, session, n)
}

// All returns every message of the session, oldest-first.
func (s *SQLiteStore) All(ctx context.Context, session string) ([]Message, error) {
	const q = `SELECT role, content, created_at FROM transcript WHERE session = ? ORDER BY id ASC`
	return s.query(ctx, "all", q, session)
}

// query runs a message-returning query. op names the caller in errors.
func (s *SQLiteStore) query(ctx context.Context, op, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", op, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: %s scan: %w", op, err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %s rows: %w", op, err)
	}
	return msgs, nil
}

// Clear deletes the session transcript.
func (s *SQLiteStore) Clear(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE session = ?`, session); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

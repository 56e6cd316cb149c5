package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONFileStore is a TranscriptStore kept in memory and mirrored to a single
// JSON file. The whole file is rewritten after every change. A missing or
// unreadable file starts an empty transcript instead of failing.
type JSONFileStore struct {
	// path is the backing file.
	path string
	// mu guards sessions and file writes.
	mu sync.Mutex
	// sessions maps session key to its messages, oldest-first.
	sessions map[string][]Message
}

// jsonFile is the on-disk layout.
type jsonFile struct {
	Sessions map[string][]Message `json:"sessions"`
}

// OpenJSONFile loads the transcript at path. Corrupt content is logged and
// discarded.
func OpenJSONFile(path string, log *slog.Logger) *JSONFileStore {
	s := &JSONFileStore{path: path, sessions: map[string][]Message{}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s
	case err != nil:
		log.Warn("store: could not read transcript, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
		return s
	}

	var f jsonFile
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn("store: transcript file is corrupt, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
		return s
	}
	if f.Sessions != nil {
		s.sessions = f.Sessions
	}
	return s
}

// Append adds a message and rewrites the file.
func (s *JSONFileStore) Append(_ context.Context, session string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("store: append: %w: %q", ErrInvalidRole, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session] = append(s.sessions[session], Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	})
	return s.flush()
}

// Recent returns the last n messages of the session, oldest-first.
func (s *JSONFileStore) Recent(_ context.Context, session string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.sessions[session]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]Message(nil), msgs...), nil
}

// All returns the whole session transcript.
func (s *JSONFileStore) All(_ context.Context, session string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sessions[session]...), nil
}

// Clear drops the session and rewrites the file.
func (s *JSONFileStore) Clear(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, session)
	return s.flush()
}

// Close is a no-op; every change is already on disk.
func (s *JSONFileStore) Close() error { return nil }

// flush writes the transcript atomically via a temp file rename.
// Caller holds mu.
func (s *JSONFileStore) flush() error {
	raw, err := json.MarshalIndent(jsonFile{Sessions: s.sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode transcript: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store: create transcript dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("store: write transcript: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: replace transcript: %w", err)
	}
	return nil
}

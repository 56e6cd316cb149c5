package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vector index backends.
const (
	VectorSQLite = "sqlite"
	VectorQdrant = "qdrant"
	VectorMemory = "memory"
)

// Transcript backends.
const (
	HistorySQLite = "sqlite"
	HistoryJSON   = "json"
)

// HistoryDisabled as the transcript path turns persistence off.
const HistoryDisabled = "disabled"

// Settings is the typed view of the environment used to wire the process.
// Provider and embedding credentials are resolved by their own packages.
type Settings struct {
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	ContextLimit     int
	HistoryDepth     int
	MaxContextTokens int

	VectorBackend string
	// IndexPath is empty when the default location should be used.
	IndexPath string

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool

	HistoryBackend string
	// HistoryPath is empty for the default location, or HistoryDisabled.
	HistoryPath string

	Host      string
	Port      int
	APIKey    string
	RateLimit float64
	RateBurst int
}

// FromEnv resolves Settings from the environment, applying defaults for unset
// keys. Malformed numbers are reported rather than silently defaulted.
func FromEnv() (*Settings, error) {
	r := &reader{}
	s := &Settings{
		ChunkSize:        r.int("CHUNK_SIZE", 1000),
		ChunkOverlap:     r.int("CHUNK_OVERLAP", 150),
		TopK:             r.int("RAG_TOP_K", 5),
		ContextLimit:     r.int("RAG_CONTEXT_LIMIT", 1200),
		HistoryDepth:     r.int("HISTORY_DEPTH", 0),
		MaxContextTokens: r.int("MAX_CONTEXT_TOKENS", 0),

		VectorBackend: strings.ToLower(r.str("VECTOR_BACKEND", VectorSQLite)),
		IndexPath:     os.Getenv("DOCRAG_INDEX_DB"),

		QdrantHost:       r.str("QDRANT_HOST", "localhost"),
		QdrantPort:       r.int("QDRANT_PORT", 6334),
		QdrantCollection: r.str("QDRANT_COLLECTION", "documents"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:        r.bool("QDRANT_TLS"),

		HistoryBackend: strings.ToLower(r.str("DOCRAG_HISTORY_BACKEND", HistorySQLite)),
		HistoryPath:    os.Getenv("DOCRAG_HISTORY_DB"),

		Host:      r.str("DOCRAG_HOST", "127.0.0.1"),
		Port:      r.int("DOCRAG_PORT", 8080),
		APIKey:    os.Getenv("DOCRAG_API_KEY"),
		RateLimit: r.float("DOCRAG_RATE_LIMIT", 0),
		RateBurst: r.int("DOCRAG_RATE_BURST", 0),
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, s.Validate()
}

// Validate checks value ranges and enumerations.
func (s *Settings) Validate() error {
	switch {
	case s.ChunkSize <= 0:
		return fmt.Errorf("config: CHUNK_SIZE must be positive, got %d", s.ChunkSize)
	case s.ChunkOverlap < 0:
		return fmt.Errorf("config: CHUNK_OVERLAP must not be negative, got %d", s.ChunkOverlap)
	case s.TopK <= 0:
		return fmt.Errorf("config: RAG_TOP_K must be positive, got %d", s.TopK)
	case s.ContextLimit <= 0:
		return fmt.Errorf("config: RAG_CONTEXT_LIMIT must be positive, got %d", s.ContextLimit)
	case s.HistoryDepth < 0:
		return fmt.Errorf("config: HISTORY_DEPTH must not be negative, got %d", s.HistoryDepth)
	}
	switch s.VectorBackend {
	case VectorSQLite, VectorQdrant, VectorMemory:
	default:
		return fmt.Errorf("config: VECTOR_BACKEND must be sqlite, qdrant or memory, got %q", s.VectorBackend)
	}
	switch s.HistoryBackend {
	case HistorySQLite, HistoryJSON:
	default:
		return fmt.Errorf("config: DOCRAG_HISTORY_BACKEND must be sqlite or json, got %q", s.HistoryBackend)
	}
	return nil
}

// reader collects the first parse error across several lookups.
type reader struct {
	err error
}

func (r *reader) str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (r *reader) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, v)
		return fallback
	}
	return i
}

func (r *reader) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.fail(key, v)
		return fallback
	}
	return f
}

func (r *reader) bool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, v)
		return false
	}
	return b
}

func (r *reader) fail(key, value string) {
	if r.err == nil {
		r.err = fmt.Errorf("config: invalid value %q for %s", value, key)
	}
}

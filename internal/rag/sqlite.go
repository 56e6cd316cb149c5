package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/54b3r/docrag-go/internal/sqlitedb"
)

// SQLiteStore is a persistent local VectorStore backed by a single SQLite
// file. Similarity search is an exact brute-force scan, which is adequate for
// the few thousand chunks a personal document collection produces.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultIndexPath returns ~/.docrag/index.db, creating the directory if
// needed.
func DefaultIndexPath() (string, error) {
	dir, err := sqlitedb.DataDir()
	if err != nil {
		return "", fmt.Errorf("rag: %w", err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// indexSchema lists the index migrations in order. Append only.
var indexSchema = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL UNIQUE,
    doc_hash     TEXT    NOT NULL,
    doc_name     TEXT    NOT NULL,
    chunk_index  INTEGER NOT NULL,
    text         TEXT    NOT NULL,
    dim          INTEGER NOT NULL,
    vector       BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_hash ON chunks (doc_hash);`,
	// Lets the catalog page through a document in chunk order.
	`DROP INDEX IF EXISTS idx_chunks_doc_hash;
CREATE INDEX idx_chunks_doc_chunk ON chunks (doc_hash, chunk_index);`,
}

// OpenSQLite opens (or creates) a SQLiteStore at path and brings its schema
// up to date. Use ":memory:" for an in-memory index in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlitedb.Open(path, indexSchema)
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Insert stores records in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: insert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO chunks (id, doc_hash, doc_name, chunk_index, text, dim, vector) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return ErrDimensionMismatch
		}
		if _, err := tx.ExecContext(ctx, q,
			r.ID, r.Metadata.DocHash, r.Metadata.DocName, r.Metadata.ChunkIndex, r.Text,
			len(r.Vector), encodeVector(r.Vector),
		); err != nil {
			return fmt.Errorf("rag: insert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: insert: commit: %w", err)
	}
	return nil
}

// dimension returns the vector size already used by the index, or 0 when the
// index is empty.
func (s *SQLiteStore) dimension(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT dim FROM chunks LIMIT 1`).Scan(&dim); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("rag: dimension: %w", err)
	}
	return int(dim.Int64), nil
}

// Find returns matching records in insertion order.
func (s *SQLiteStore) Find(ctx context.Context, f Filter, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	where, args := sqlWhere(f)
	q := `SELECT id, doc_hash, doc_name, chunk_index, text FROM chunks` + where + ` ORDER BY seq LIMIT ? OFFSET ?`
	args = append(args, limit, max(0, offset))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rag: find: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Metadata.DocHash, &r.Metadata.DocName, &r.Metadata.ChunkIndex, &r.Text); err != nil {
			return nil, fmt.Errorf("rag: find scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: find rows: %w", err)
	}
	return out, nil
}

// Query loads every vector and ranks them by cosine distance to vector.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, n int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_hash, doc_name, chunk_index, text, vector FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("rag: query: %w", err)
	}
	defer rows.Close()

	var candidates []Record
	for rows.Next() {
		var r Record
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Metadata.DocHash, &r.Metadata.DocName, &r.Metadata.ChunkIndex, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("rag: query scan: %w", err)
		}
		r.Vector = decodeVector(blob)
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: query rows: %w", err)
	}

	return nearest(vector, candidates, n)
}

// Delete removes matching records.
func (s *SQLiteStore) Delete(ctx context.Context, f Filter) error {
	where, args := sqlWhere(f)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`+where, args...); err != nil {
		return fmt.Errorf("rag: delete: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("rag: count: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable. It lets the store double as a
// readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: close: %w", err)
	}
	return nil
}

// sqlWhere renders f as a WHERE clause, empty for the match-all filter.
func sqlWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.DocHash != "" {
		conds = append(conds, `doc_hash = ?`)
		args = append(args, f.DocHash)
	}
	if len(f.IDs) > 0 {
		conds = append(conds, `id IN (?`+strings.Repeat(`, ?`, len(f.IDs)-1)+`)`)
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

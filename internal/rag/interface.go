// Package rag defines the vector index and retrieval contracts used by the
// ingestion pipeline and the question-answering agent, together with the
// concrete index backends: a local SQLite file (the default), a remote Qdrant
// collection, and an in-process memory store.
package rag

import (
	"context"
	"errors"
	"slices"
)

// Metadata keys stored alongside every chunk. They match across backends so an
// index can be inspected with the backend's own tooling.
const (
	// KeyText holds the chunk text.
	KeyText = "text"
	// KeyDocName holds the display name of the parent document.
	KeyDocName = "doc_name"
	// KeyDocHash holds the SHA-256 fingerprint of the parent document.
	KeyDocHash = "doc_hash"
	// KeyChunkIndex holds the 0-based position of the chunk in its document.
	KeyChunkIndex = "chunk_index"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// vectors already stored in the index.
var ErrDimensionMismatch = errors.New("rag: vector dimension mismatch")

// Metadata is the structured metadata stored with each chunk.
type Metadata struct {
	// DocName is the display name of the document (e.g. the uploaded file name).
	DocName string
	// DocHash is the hex SHA-256 fingerprint of the document's raw bytes.
	DocHash string
	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int
}

// Record is a single stored chunk.
type Record struct {
	// ID is the unique identifier of the record in the index.
	ID string
	// Text is the chunk text.
	Text string
	// Vector is the chunk embedding. Find and Query leave it empty.
	Vector []float32
	// Metadata describes where the chunk came from.
	Metadata Metadata
}

// Result is a record returned by a similarity query.
type Result struct {
	Record
	// Distance is the cosine distance to the query vector: 0 is identical,
	// larger is less similar.
	Distance float32
}

// Filter selects records by metadata. The zero value matches every record.
type Filter struct {
	// DocHash restricts the match to one document fingerprint when non-empty.
	DocHash string
	// IDs restricts the match to these record IDs when non-empty.
	IDs []string
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r Record) bool {
	if f.DocHash != "" && f.DocHash != r.Metadata.DocHash {
		return false
	}
	return len(f.IDs) == 0 || slices.Contains(f.IDs, r.ID)
}

// VectorStore persists chunk records with their embeddings and answers
// similarity queries. Implementations must be safe to call from multiple
// goroutines.
type VectorStore interface {
	// Insert stores a batch of records. Every record must carry a vector.
	Insert(ctx context.Context, records []Record) error

	// Find returns up to limit records matching f, skipping the first offset
	// matches. Ordering is stable between calls on an unchanged index.
	Find(ctx context.Context, f Filter, limit, offset int) ([]Record, error)

	// Query returns the n records closest to vector, nearest first.
	Query(ctx context.Context, vector []float32, n int) ([]Result, error)

	// Delete removes every record matching f.
	Delete(ctx context.Context, f Filter) error

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the chunks most relevant to a question.
type Retriever interface {
	// Retrieve returns the topK closest chunks for query, nearest first.
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

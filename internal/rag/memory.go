package rag

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine distance.
// Its contents are lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends records in order. A batch with any vector of the wrong
// size is rejected whole.
func (s *MemoryStore) Insert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := len(records[0].Vector)
	if len(s.records) > 0 {
		dim = len(s.records[0].Vector)
	}
	for _, r := range records {
		if len(r.Vector) != dim {
			return ErrDimensionMismatch
		}
	}
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		s.records = append(s.records, r)
	}
	return nil
}

// Find returns matching records in insertion order.
func (s *MemoryStore) Find(_ context.Context, f Filter, limit, offset int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Record
	for _, r := range s.records {
		if f.Match(r) {
			r.Vector = nil
			matches = append(matches, r)
		}
	}
	return page(matches, limit, offset), nil
}

// Query scores every stored record against vector.
func (s *MemoryStore) Query(_ context.Context, vector []float32, n int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return nearest(vector, s.records, n)
}

// Delete removes matching records.
func (s *MemoryStore) Delete(_ context.Context, f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = slices.DeleteFunc(s.records, func(r Record) bool { return f.Match(r) })
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

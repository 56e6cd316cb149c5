// Package catalog answers "which documents are indexed?". The vector index
// stores only chunks, so the document listing is rebuilt on demand by paging
// through chunk metadata and folding it by fingerprint. Documents ingested by
// this process are also kept in a pending overlay so they show up even when a
// backend has not made fresh writes visible to reads yet.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/54b3r/docrag-go/internal/rag"
)

// PageSize is the number of chunk records read per index call while building
// a listing.
const PageSize = 500

// Document is one entry of the listing.
type Document struct {
	// Hash is the document fingerprint (hex SHA-256 of its bytes).
	Hash string `json:"hash"`
	// Name is the display name recorded with the first chunk seen.
	Name string `json:"name"`
	// Chunks is the number of chunks found in the index.
	Chunks int `json:"chunks"`
	// Pending is true when the document is known only from the overlay.
	Pending bool `json:"pending,omitempty"`
}

// Listing is the result of List.
type Listing struct {
	// Documents are ordered by first appearance in the index, followed by
	// overlay-only entries in the order they were marked.
	Documents []Document `json:"documents"`
	// Embeddings is the total number of chunk records in the index.
	Embeddings int `json:"embeddings"`
}

// Catalog builds document listings over a vector index. It is safe for
// concurrent use.
type Catalog struct {
	// store is the index being listed.
	store rag.VectorStore
	// pageSize overrides PageSize in tests.
	pageSize int

	// mu guards pending and order.
	mu sync.Mutex
	// pending maps fingerprint to display name for documents ingested by
	// this process.
	pending map[string]string
	// order keeps overlay insertion order.
	order []string
}

// New returns a Catalog over store.
func New(store rag.VectorStore) *Catalog {
	return &Catalog{store: store, pageSize: PageSize, pending: map[string]string{}}
}

// MarkPending records a just-ingested document in the overlay.
func (c *Catalog) MarkPending(hash, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[hash]; !ok {
		c.order = append(c.order, hash)
	}
	c.pending[hash] = name
}

// forget removes hash from the overlay.
func (c *Catalog) forget(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[hash]; !ok {
		return
	}
	delete(c.pending, hash)
	for i, h := range c.order {
		if h == hash {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// List pages through every chunk in the index and returns one entry per
// distinct fingerprint, merged with the pending overlay.
func (c *Catalog) List(ctx context.Context) (Listing, error) {
	total, err := c.store.Count(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("catalog: count: %w", err)
	}

	var docs []Document
	index := map[string]int{}
	for offset := 0; ; offset += c.pageSize {
		rows, err := c.store.Find(ctx, rag.Filter{}, c.pageSize, offset)
		if err != nil {
			return Listing{}, fmt.Errorf("catalog: list at offset %d: %w", offset, err)
		}
		for _, r := range rows {
			h := r.Metadata.DocHash
			if h == "" {
				continue
			}
			if i, ok := index[h]; ok {
				docs[i].Chunks++
				continue
			}
			name := r.Metadata.DocName
			if name == "" {
				name = h
			}
			index[h] = len(docs)
			docs = append(docs, Document{Hash: h, Name: name, Chunks: 1})
		}
		if len(rows) < c.pageSize {
			break
		}
	}

	c.mu.Lock()
	for _, h := range c.order {
		if _, ok := index[h]; !ok {
			docs = append(docs, Document{Hash: h, Name: c.pending[h], Pending: true})
		}
	}
	c.mu.Unlock()

	return Listing{Documents: docs, Embeddings: total}, nil
}

// Delete removes every chunk of the document and drops it from the overlay.
func (c *Catalog) Delete(ctx context.Context, hash string) error {
	if hash == "" {
		return fmt.Errorf("catalog: delete: empty fingerprint")
	}
	if err := c.store.Delete(ctx, rag.Filter{DocHash: hash}); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", hash, err)
	}
	c.forget(hash)
	return nil
}

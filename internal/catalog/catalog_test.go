package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/54b3r/docrag-go/internal/rag"
)

// countingStore wraps a MemoryStore and records Find calls.
type countingStore struct {
	*rag.MemoryStore
	finds int
}

func (s *countingStore) Find(ctx context.Context, f rag.Filter, limit, offset int) ([]rag.Record, error) {
	s.finds++
	return s.MemoryStore.Find(ctx, f, limit, offset)
}

func insertDoc(t *testing.T, s rag.VectorStore, hash, name string, chunks int) {
	t.Helper()
	recs := make([]rag.Record, chunks)
	for i := range recs {
		recs[i] = rag.Record{
			ID:       fmt.Sprintf("%s-%d", hash, i),
			Text:     "chunk",
			Vector:   []float32{1, 0},
			Metadata: rag.Metadata{DocName: name, DocHash: hash, ChunkIndex: i},
		}
	}
	if err := s.Insert(context.Background(), recs); err != nil {
		t.Fatalf("insert %s: %v", hash, err)
	}
}

func TestList_FoldsChunksByHash(t *testing.T) {
	t.Parallel()
	s := rag.NewMemoryStore()
	insertDoc(t, s, "h1", "a.pdf", 3)
	insertDoc(t, s, "h2", "b.pdf", 2)

	got, err := New(s).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got.Embeddings != 5 {
		t.Errorf("embeddings: want 5, got %d", got.Embeddings)
	}
	if len(got.Documents) != 2 {
		t.Fatalf("want 2 documents, got %+v", got.Documents)
	}
	if d := got.Documents[0]; d.Hash != "h1" || d.Name != "a.pdf" || d.Chunks != 3 || d.Pending {
		t.Errorf("doc 0: %+v", d)
	}
	if d := got.Documents[1]; d.Hash != "h2" || d.Chunks != 2 {
		t.Errorf("doc 1: %+v", d)
	}
}

func TestList_PagesUntilShortPage(t *testing.T) {
	t.Parallel()
	s := &countingStore{MemoryStore: rag.NewMemoryStore()}
	insertDoc(t, s, "h1", "a.pdf", 5)
	insertDoc(t, s, "h2", "b.pdf", 5)

	c := New(s)
	c.pageSize = 4

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if s.finds != 3 {
		t.Errorf("want 3 pages for 10 records at size 4, got %d", s.finds)
	}
	if len(got.Documents) != 2 || got.Documents[1].Chunks != 5 {
		t.Errorf("documents: %+v", got.Documents)
	}
}

func TestList_MergesPendingOverlay(t *testing.T) {
	t.Parallel()
	s := rag.NewMemoryStore()
	insertDoc(t, s, "h1", "a.pdf", 1)

	c := New(s)
	c.MarkPending("h1", "a.pdf")
	c.MarkPending("h9", "fresh.pdf")

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got.Documents) != 2 {
		t.Fatalf("want 2 documents, got %+v", got.Documents)
	}
	if got.Documents[0].Pending {
		t.Error("indexed document must not be marked pending")
	}
	if d := got.Documents[1]; d.Hash != "h9" || d.Name != "fresh.pdf" || !d.Pending {
		t.Errorf("overlay entry: %+v", d)
	}
}

func TestList_EmptyIndex(t *testing.T) {
	t.Parallel()

	got, err := New(rag.NewMemoryStore()).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got.Documents) != 0 || got.Embeddings != 0 {
		t.Errorf("want empty listing, got %+v", got)
	}
}

func TestDelete_RemovesChunksAndOverlay(t *testing.T) {
	t.Parallel()
	s := rag.NewMemoryStore()
	insertDoc(t, s, "h1", "a.pdf", 2)
	insertDoc(t, s, "h2", "b.pdf", 1)

	c := New(s)
	c.MarkPending("h1", "a.pdf")

	if err := c.Delete(context.Background(), "h1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ := c.List(context.Background())
	if len(got.Documents) != 1 || got.Documents[0].Hash != "h2" {
		t.Errorf("after delete: %+v", got.Documents)
	}
	if got.Embeddings != 1 {
		t.Errorf("embeddings after delete: %d", got.Embeddings)
	}
}

func TestDelete_EmptyHash(t *testing.T) {
	t.Parallel()

	if err := New(rag.NewMemoryStore()).Delete(context.Background(), ""); err == nil {
		t.Error("expected error for empty fingerprint")
	}
}

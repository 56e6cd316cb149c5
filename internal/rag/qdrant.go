package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: documents).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. When zero the collection is created on first insert using
	// the size of the first vector.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// mu guards exists.
	mu sync.Mutex
	// exists records whether the collection is known to exist.
	exists bool
}

// NewQdrantStore connects to Qdrant and ensures the target collection exists
// when its vector size is known up front.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	store.exists = exists

	if !exists && cfg.VectorSize > 0 {
		if err := store.ensureCollection(ctx, cfg.VectorSize); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// ensureCollection creates the collection with the given vector size if it
// has not been created yet.
func (s *QdrantStore) ensureCollection(ctx context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists {
		return nil
	}

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	s.exists = true
	return nil
}

// collectionExists reports whether reads can be served.
func (s *QdrantStore) collectionExists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}

// Insert upserts records with their vectors and payload, waiting for the
// write to be applied.
func (s *QdrantStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dim := len(records[0].Vector)
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != dim {
			return ErrDimensionMismatch
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(payloadFor(r)),
		})
	}

	if err := s.ensureCollection(ctx, uint64(dim)); err != nil {
		return err
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Find pages through matching points without a query vector.
func (s *QdrantStore) Find(ctx context.Context, f Filter, limit, offset int) ([]Record, error) {
	if !s.collectionExists() {
		return nil, nil
	}

	// Without a query vector Qdrant returns points ordered by ID and applies
	// its own default limit, so an unbounded Find asks for everything.
	if limit <= 0 {
		n, err := s.Count(ctx)
		if err != nil {
			return nil, err
		}
		limit = max(n, 1)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Filter:         qdrantFilter(f),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Offset:         qdrant.PtrOf(uint64(max(0, offset))),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: find failed: %w", err)
	}

	out := make([]Record, 0, len(points))
	for _, p := range points {
		out = append(out, recordFromPayload(p.GetId(), p.GetPayload()))
	}
	return out, nil
}

// Query performs a cosine similarity search. Qdrant reports similarity, so
// the distance is 1 - score.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, n int) ([]Result, error) {
	if !s.collectionExists() || n <= 0 {
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]Result, 0, len(points))
	for _, p := range points {
		out = append(out, Result{
			Record:   recordFromPayload(p.GetId(), p.GetPayload()),
			Distance: 1 - p.GetScore(),
		})
	}
	return out, nil
}

// Delete removes every point matching f.
func (s *QdrantStore) Delete(ctx context.Context, f Filter) error {
	if !s.collectionExists() {
		return nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(qdrantFilterOrAll(f)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if !s.collectionExists() {
		return 0, nil
	}

	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// payloadFor builds the point payload for r.
func payloadFor(r Record) map[string]any {
	return map[string]any{
		KeyText:       r.Text,
		KeyDocName:    r.Metadata.DocName,
		KeyDocHash:    r.Metadata.DocHash,
		KeyChunkIndex: int64(r.Metadata.ChunkIndex),
	}
}

// recordFromPayload is the inverse of payloadFor.
func recordFromPayload(id *qdrant.PointId, p map[string]*qdrant.Value) Record {
	r := Record{ID: id.GetUuid()}
	if v, ok := p[KeyText]; ok {
		r.Text = v.GetStringValue()
	}
	if v, ok := p[KeyDocName]; ok {
		r.Metadata.DocName = v.GetStringValue()
	}
	if v, ok := p[KeyDocHash]; ok {
		r.Metadata.DocHash = v.GetStringValue()
	}
	if v, ok := p[KeyChunkIndex]; ok {
		r.Metadata.ChunkIndex = int(v.GetIntegerValue())
	}
	return r
}

// qdrantFilter translates f, returning nil for the match-all filter.
func qdrantFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.DocHash != "" {
		must = append(must, qdrant.NewMatch(KeyDocHash, f.DocHash))
	}
	if len(f.IDs) > 0 {
		ids := make([]*qdrant.PointId, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = qdrant.NewIDUUID(id)
		}
		must = append(must, qdrant.NewHasID(ids...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// qdrantFilterOrAll is qdrantFilter but never nil, since a delete selector
// requires a filter.
func qdrantFilterOrAll(f Filter) *qdrant.Filter {
	if q := qdrantFilter(f); q != nil {
		return q
	}
	return &qdrant.Filter{}
}

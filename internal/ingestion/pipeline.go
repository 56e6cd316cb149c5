// Package ingestion implements the document ingestion pipeline. Each upload
// is fingerprinted, checked against the index, extracted, normalised and
// chunked, embedded, and stored. Uploads are processed one after another and
// every upload gets its own Outcome: a failure aborts that document only.
// This pipeline backs both `docrag ingest` and POST /api/documents.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/embedder"
	"github.com/54b3r/docrag-go/internal/extract"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// ErrEmptyDocument is reported when a document yields no text after
// extraction and normalisation.
var ErrEmptyDocument = errors.New("ingestion: no extractable text")

// Status classifies the result of ingesting one upload.
type Status string

const (
	// StatusIndexed means the document was chunked, embedded and stored.
	StatusIndexed Status = "indexed"
	// StatusAlreadyIndexed means a document with the same fingerprint was
	// already present and nothing was done.
	StatusAlreadyIndexed Status = "already_indexed"
	// StatusEmpty means no text could be extracted.
	StatusEmpty Status = "empty"
	// StatusFailed means extraction, embedding or storage failed.
	StatusFailed Status = "failed"
)

// Upload is one document submitted for ingestion.
type Upload struct {
	// Name is the display name, usually the original file name.
	Name string
	// Data is the raw file content.
	Data []byte
}

// Outcome reports what happened to one upload.
type Outcome struct {
	// Name is the upload's display name.
	Name string `json:"name"`
	// Hash is the upload's fingerprint.
	Hash string `json:"hash"`
	// Status classifies the result.
	Status Status `json:"status"`
	// Chunks is the number of chunks stored (0 unless indexed).
	Chunks int `json:"chunks"`
	// Message is a one-line human readable summary.
	Message string `json:"message"`
	// Err is set for StatusEmpty and StatusFailed.
	Err error `json:"-"`
}

// Options tune a single Ingest call.
type Options struct {
	// Force re-ingests documents whose fingerprint is already indexed,
	// replacing their existing chunks.
	Force bool
	// Progress, when set, receives human readable progress lines.
	Progress func(msg string)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the chunk window in characters. Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Negative values are treated as 0.
	ChunkOverlap int

	// BatchSize is the number of chunks per embedding request.
	// Defaults to embedder.DefaultBatchSize if zero.
	BatchSize int
}

// Pipeline orchestrates the fingerprint → extract → chunk → embed → insert
// flow for uploaded documents.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// catalog receives the pending overlay entry of each indexed document.
	// May be nil.
	catalog *catalog.Catalog

	// cfg holds the resolved pipeline configuration.
	cfg Config

	// newID generates chunk record IDs.
	newID func() string

	// inflight serialises ingestion of the same fingerprint from the
	// duplicate check through the insert.
	inflight keyedMutex
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(emb rag.Embedder, store rag.VectorStore, cat *catalog.Catalog, cfg *Config) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = embedder.DefaultBatchSize
	}

	return &Pipeline{
		embedder: emb,
		store:    store,
		catalog:  cat,
		cfg:      c,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Fingerprint returns the hex SHA-256 of raw.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Ingest processes uploads sequentially and returns one Outcome per upload in
// input order. Documents stored before a later failure stay stored.
func (p *Pipeline) Ingest(ctx context.Context, uploads []Upload, opts Options) []Outcome {
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	outcomes := make([]Outcome, 0, len(uploads))
	for _, u := range uploads {
		o := p.ingestOne(ctx, u, opts.Force, progress)
		outcomes = append(outcomes, o)

		attrs := []any{
			slog.String("doc_name", o.Name),
			slog.String("doc_hash", o.Hash),
			slog.String("status", string(o.Status)),
			slog.Int("chunks", o.Chunks),
		}
		switch o.Status {
		case StatusFailed:
			log.Error("ingestion: document failed", append(attrs, slog.String("error", o.Err.Error()))...)
		case StatusEmpty:
			log.Warn("ingestion: document has no text", attrs...)
		default:
			log.Info("ingestion: document processed", attrs...)
		}
		progress(o.Message)
	}
	return outcomes
}

// ingestOne runs the pipeline for a single upload.
func (p *Pipeline) ingestOne(ctx context.Context, u Upload, force bool, progress func(string)) Outcome {
	o := Outcome{Name: u.Name, Hash: Fingerprint(u.Data)}
	unlock := p.inflight.lock(o.Hash)
	defer unlock()

	fail := func(err error) Outcome {
		o.Status = StatusFailed
		o.Err = err
		o.Message = fmt.Sprintf("Failed on %s: %v", u.Name, err)
		return o
	}

	limit := 1
	if force {
		limit = 0
	}
	existing, err := p.store.Find(ctx, rag.Filter{DocHash: o.Hash}, limit, 0)
	if err != nil {
		return fail(fmt.Errorf("ingestion: duplicate check: %w", err))
	}
	if len(existing) > 0 && !force {
		o.Status = StatusAlreadyIndexed
		o.Message = fmt.Sprintf("Already indexed: %s (skipping)", u.Name)
		return o
	}

	text, err := extract.ForName(u.Name, u.Data)
	if err != nil {
		return fail(err)
	}
	if chunker.Normalize(text) == "" {
		o.Status = StatusEmpty
		o.Err = ErrEmptyDocument
		o.Message = fmt.Sprintf("No extractable text in %s", u.Name)
		return o
	}

	chunks := chunker.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	progress(fmt.Sprintf("Embedding %d chunks of %s...", len(chunks), u.Name))

	vectors, err := embedder.EmbedAll(ctx, p.embedder, chunks, p.cfg.BatchSize)
	if err != nil {
		return fail(err)
	}

	records := make([]rag.Record, len(chunks))
	for i, c := range chunks {
		records[i] = rag.Record{
			ID:     p.newID(),
			Text:   c,
			Vector: vectors[i],
			Metadata: rag.Metadata{
				DocName:    u.Name,
				DocHash:    o.Hash,
				ChunkIndex: i,
			},
		}
	}

	if err := p.store.Insert(ctx, records); err != nil {
		return fail(fmt.Errorf("ingestion: insert: %w", err))
	}
	// The old chunks go only once their replacements are stored.
	if len(existing) > 0 {
		stale := make([]string, len(existing))
		for i, r := range existing {
			stale[i] = r.ID
		}
		if err := p.store.Delete(ctx, rag.Filter{DocHash: o.Hash, IDs: stale}); err != nil {
			return fail(fmt.Errorf("ingestion: remove replaced chunks: %w", err))
		}
	}

	if p.catalog != nil {
		p.catalog.MarkPending(o.Hash, u.Name)
	}

	o.Status = StatusIndexed
	o.Chunks = len(chunks)
	o.Message = fmt.Sprintf("Indexed %s → %d chunks", u.Name, len(chunks))
	return o
}

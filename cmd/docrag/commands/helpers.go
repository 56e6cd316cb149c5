package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docrag-go/internal/agent"
	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/config"
	"github.com/54b3r/docrag-go/internal/embedder"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/provider"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/store"
)

// closers releases handles in reverse order of acquisition.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c *closers) closeAll(log *slog.Logger) {
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			log.Warn("close failed", slog.Any("error", err))
		}
	}
}

// openIndex opens the vector index selected by VECTOR_BACKEND. The returned
// pinger is nil for the in-memory backend.
func openIndex(ctx context.Context, s *config.Settings, log *slog.Logger, c *closers) (rag.VectorStore, server.Pinger, error) {
	switch s.VectorBackend {
	case config.VectorQdrant:
		backend := embedder.Backend()
		q, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			VectorSize: uint64(embedder.DefaultDimensions(backend)), //nolint:gosec // dimensions are bounded
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.QdrantHost, s.QdrantPort, err)
		}
		c.add(q.Close)
		log.Info("index: qdrant store ready",
			slog.String("host", s.QdrantHost),
			slog.Int("port", s.QdrantPort),
			slog.String("collection", s.QdrantCollection),
		)
		return q, server.NewQdrantPinger(q.Client()), nil

	case config.VectorMemory:
		log.Warn("index: using in-memory store, documents are lost on exit")
		return rag.NewMemoryStore(), nil, nil

	default:
		path := s.IndexPath
		if path == "" {
			var err error
			if path, err = rag.DefaultIndexPath(); err != nil {
				return nil, nil, err
			}
		}
		st, err := rag.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		c.add(st.Close)
		log.Info("index: sqlite store opened", slog.String("path", path))
		return st, server.NewNamedPinger("index", st), nil
	}
}

// openTranscript opens the transcript store selected by
// DOCRAG_HISTORY_BACKEND. It returns a nil store when history is disabled.
func openTranscript(s *config.Settings, log *slog.Logger, c *closers) (store.TranscriptStore, server.Pinger, error) {
	if s.HistoryPath == config.HistoryDisabled {
		log.Info("history: disabled via DOCRAG_HISTORY_DB=disabled")
		return nil, nil, nil
	}

	path := s.HistoryPath
	if path == "" {
		def, err := store.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
		path = def
		if s.HistoryBackend == config.HistoryJSON {
			path = filepath.Join(filepath.Dir(def), "history.json")
		}
	}

	if s.HistoryBackend == config.HistoryJSON {
		js := store.OpenJSONFile(path, log)
		c.add(js.Close)
		log.Info("history: json transcript opened", slog.String("path", path))
		return js, nil, nil
	}

	hs, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	c.add(hs.Close)
	log.Info("history: store opened", slog.String("path", path))
	return hs, server.NewNamedPinger("history", hs), nil
}

// newEmbedder validates the embedding configuration and builds the embedder.
func newEmbedder(ctx context.Context, log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))
	return emb, nil
}

// newPipeline wires an ingestion pipeline over idx with chunking from s.
func newPipeline(emb rag.Embedder, idx rag.VectorStore, cat *catalog.Catalog, s *config.Settings) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(emb, idx, cat, &ingestion.Config{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		BatchSize:    embedder.BatchSize(),
	})
}

// chatStack is the question-answering side of the service.
type chatStack struct {
	agent       *agent.Agent
	chatModel   model.BaseChatModel
	providerCfg *provider.Config
}

// newChatStack builds the chat model, retriever and agent.
func newChatStack(ctx context.Context, s *config.Settings, emb rag.Embedder, idx rag.VectorStore, transcript store.TranscriptStore, log *slog.Logger) (*chatStack, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	retriever, err := rag.NewRetriever(emb, idx, s.TopK)
	if err != nil {
		return nil, err
	}

	temp := providerCfg.Tuning.Temperature
	a, err := agent.New(&agent.Config{
		ChatModel:        chatModel,
		Retriever:        retriever,
		TopK:             s.TopK,
		ContextLimit:     s.ContextLimit,
		MaxTokens:        providerCfg.Tuning.MaxTokens,
		Temperature:      &temp,
		Transcript:       transcript,
		Session:          store.DefaultSession,
		HistoryDepth:     s.HistoryDepth,
		MaxContextTokens: s.MaxContextTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise agent: %w", err)
	}
	return &chatStack{agent: a, chatModel: chatModel, providerCfg: providerCfg}, nil
}

// requireTranscript turns a disabled transcript into an error for commands
// that only operate on history.
func requireTranscript(t store.TranscriptStore) error {
	if t == nil {
		return errors.New("history is disabled (DOCRAG_HISTORY_DB=disabled)")
	}
	return nil
}

package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder embeds chunks with a locally running Ollama server through
// its batch endpoint, POST /api/embed. One request carries a whole batch.
type OllamaEmbedder struct {
	endpoint string
	model    string
	http     *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434". A trailing
	// slash is tolerated.
	Host string
	// Model is the embedding model tag, e.g. "nomic-embed-text".
	Model string
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
// Local models can be slow to load on first use, hence the generous timeout.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:    cfg.Model,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaBatch struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaVectors struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaErrorText extracts the "error" field Ollama puts in failure bodies,
// e.g. `{"error":"model \"x\" not found, try pulling it first"}`.
func ollamaErrorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

// Embed returns one vector per text, in input order. A blank vector for a
// text is reported as an *EmbedError at that text's position.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var got ollamaVectors
	err := postJSON(ctx, e.http, e.endpoint, nil, ollamaBatch{Model: e.model, Input: texts}, &got, ollamaErrorText)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder (%s): %w", e.model, err)
	}

	if n := len(got.Embeddings); n != len(texts) {
		if n < len(texts) {
			return nil, errAt(texts, n, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), n))
		}
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), n)
	}
	for i, v := range got.Embeddings {
		if len(v) == 0 {
			return nil, errAt(texts, i, errors.New("ollama embedder: empty embedding"))
		}
	}
	return got.Embeddings, nil
}

// Package embedder provides implementations of the rag.Embedder interface for
// converting document chunks and questions into dense vector embeddings.
// OpenAI, Azure OpenAI and Ollama are reached over plain HTTP; AWS Bedrock
// (Amazon Titan) and Google Gemini go through their vendor SDKs.
package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIEmbedder calls the embeddings endpoint shared by OpenAI and Azure
// OpenAI. The two differ only in URL layout and in how the key is sent.
type OpenAIEmbedder struct {
	url        string
	header     http.Header
	model      string
	dimensions int
	http       *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	APIKey  string
	// Model is the model name, or the deployment name when Azure is set.
	Model string
	// Dimensions truncates vectors server-side for models that support it.
	// Zero keeps the model default.
	Dimensions int
	// Azure sends the key as an api-key header and addresses the deployment
	// path with an api-version query parameter.
	Azure      bool
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	header := http.Header{}

	endpoint := base + "/embeddings"
	if cfg.Azure {
		q := url.Values{"api-version": {cfg.APIVersion}}
		endpoint = base + "/deployments/" + url.PathEscape(cfg.Model) + "/embeddings?" + q.Encode()
		header.Set("api-key", cfg.APIKey)
	} else {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	return &OpenAIEmbedder{
		url:        endpoint,
		header:     header,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func openaiErrorText(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}

// Embed returns one vector per text in input order. The API tags each vector
// with its input index and does not promise to keep them sorted.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openaiEmbedResponse
	req := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}
	if err := postJSON(ctx, e.http, e.url, e.header, req, &resp, openaiErrorText); err != nil {
		return nil, fmt.Errorf("openai embedder (%s): %w", e.model, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, errAt(texts, i, errors.New("openai embedder: empty embedding"))
		}
	}
	return out, nil
}

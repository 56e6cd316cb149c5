package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HealthChecker probes a chat backend without generating tokens.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// httpCheck issues a GET against a cheap listing endpoint of the backend.
type httpCheck struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HealthCheck returns nil when the endpoint answers with a 2xx status.
func (c *httpCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health: build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider: health: %s returned HTTP %d", redact(c.url), resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a zero-cost probe for cfg's backend, or nil when the
// backend has no endpoint that can be checked without a generate call.
func NewHealthCheck(cfg *Config) HealthChecker {
	client := &http.Client{Timeout: 10 * time.Second}
	switch cfg.Backend {
	case BackendOllama:
		return &httpCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		return &httpCheck{
			url:     "https://api.openai.com/v1/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
			client:  client,
		}
	case BackendAzure:
		return &httpCheck{
			url: strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/") +
				"/openai/models?api-version=" + url.QueryEscape(cfg.AzureOpenAI.APIVersion),
			headers: map[string]string{"api-key": cfg.AzureOpenAI.APIKey},
			client:  client,
		}
	case BackendGemini:
		return &httpCheck{
			url:     "https://generativelanguage.googleapis.com/v1beta/models",
			headers: map[string]string{"x-goog-api-key": cfg.Gemini.APIKey},
			client:  client,
		}
	default:
		return nil
	}
}

// redact drops the query string so api-version and similar params are not
// echoed with every failure.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

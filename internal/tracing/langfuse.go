// Package tracing sends chat model calls to Langfuse when it is configured.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/docrag-go/internal/version"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse credentials.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	return Config{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup registers a global Langfuse callback handler so every eino chat model
// call is traced. It returns a flush function that must be called before
// process exit, or nil when tracing is not configured.
func Setup(cfg Config) func() {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "docrag",
		Release:   version.Version,
	})
	callbacks.AppendGlobalHandlers(handler)
	return flusher
}

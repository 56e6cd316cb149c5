// Package config provides YAML-based configuration for docrag.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// .env file → env vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCRAG_CONFIG environment variable
//  3. ~/.docrag/config.yaml
//  4. ./docrag.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector configures the vector index backend.
	Vector VectorConfig `yaml:"vector"`

	// RAG configures chunking and retrieval.
	RAG RAGConfig `yaml:"rag"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures transcript persistence.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, ark, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the answer.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls answer randomness, 0 to 2.
	Temperature float32 `yaml:"temperature"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Ark     ArkConfig     `yaml:"ark"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds AWS Bedrock settings shared by chat and embeddings.
type BedrockConfig struct {
	// Region is the AWS region for Bedrock.
	Region string `yaml:"region"`
	// Profile is the optional shared-config profile name.
	Profile string `yaml:"profile"`
	// ModelID is the Bedrock chat model identifier.
	ModelID string `yaml:"model_id"`
	// EmbedModelID is the Bedrock embedding model identifier.
	EmbedModelID string `yaml:"embed_model_id"`
}

// ArkConfig holds Volcengine Ark settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, bedrock, gemini).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is the number of texts sent per embedding request.
	BatchSize int `yaml:"batch_size"`
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	// Backend is sqlite, qdrant, or memory.
	Backend string `yaml:"backend"`
	// IndexDB is the SQLite index path for the sqlite backend.
	IndexDB string `yaml:"index_db"`
	// Qdrant holds the qdrant backend connection settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// RAGConfig holds chunking and retrieval settings.
type RAGConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	TopK             int `yaml:"top_k"`
	ContextLimit     int `yaml:"context_limit"`
	HistoryDepth     int `yaml:"history_depth"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCRAG_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained per-IP request rate on chat and upload.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the per-IP burst size.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds transcript settings.
type HistoryConfig struct {
	// Backend is sqlite or json.
	Backend string `yaml:"backend"`
	// Path is the transcript file. Set to "disabled" to turn persistence off.
	Path string `yaml:"path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// bindings pair every YAML field with the environment variable it feeds.
// Zero values in the file are skipped, so a YAML file can never unset a
// default.
var bindings = []struct {
	env   string
	value func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return format(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return format(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"AWS_PROFILE", func(c *Config) string { return c.Model.Bedrock.Profile }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"BEDROCK_EMBED_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.EmbedModelID }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return format(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return format(c.Embedding.BatchSize) }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Vector.Backend }},
	{"DOCRAG_INDEX_DB", func(c *Config) string { return c.Vector.IndexDB }},
	{"QDRANT_HOST", func(c *Config) string { return c.Vector.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return format(c.Vector.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Vector.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Vector.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return format(c.Vector.Qdrant.TLS) }},
	{"CHUNK_SIZE", func(c *Config) string { return format(c.RAG.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return format(c.RAG.ChunkOverlap) }},
	{"RAG_TOP_K", func(c *Config) string { return format(c.RAG.TopK) }},
	{"RAG_CONTEXT_LIMIT", func(c *Config) string { return format(c.RAG.ContextLimit) }},
	{"HISTORY_DEPTH", func(c *Config) string { return format(c.RAG.HistoryDepth) }},
	{"MAX_CONTEXT_TOKENS", func(c *Config) string { return format(c.RAG.MaxContextTokens) }},
	{"DOCRAG_HOST", func(c *Config) string { return c.Server.Host }},
	{"DOCRAG_PORT", func(c *Config) string { return format(c.Server.Port) }},
	{"DOCRAG_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"DOCRAG_RATE_LIMIT", func(c *Config) string { return format(c.Server.RateLimit) }},
	{"DOCRAG_RATE_BURST", func(c *Config) string { return format(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"DOCRAG_HISTORY_BACKEND", func(c *Config) string { return c.History.Backend }},
	{"DOCRAG_HISTORY_DB", func(c *Config) string { return c.History.Path }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// format renders a YAML scalar as an environment value, or "" for the zero
// value.
func format[T int | float32 | float64 | bool](v T) string {
	var zero T
	if v == zero {
		return ""
	}
	switch x := any(v).(type) {
	case int:
		return strconv.Itoa(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// isSecret reports whether env names a credential.
func isSecret(env string) bool {
	return strings.HasSuffix(env, "_KEY")
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overwriting variables that are already set. A missing file is not an error.
// It returns true when a file was loaded.
func LoadDotEnv(path string, log *slog.Logger) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return true, nil
}

// Load finds the YAML config file and exports its non-zero values as
// environment variables that are not already set. It returns the path
// loaded, or "" when no file exists in any search location. An explicit path
// that does not exist is an error, and so is any key docrag does not know.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolveConfigPath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	var applied, secrets int
	for _, b := range bindings {
		v := b.value(&cfg)
		if v == "" {
			continue
		}
		if isSecret(b.env) {
			secrets++
		}
		if os.Getenv(b.env) != "" {
			continue
		}
		if err := os.Setenv(b.env, v); err != nil {
			return "", fmt.Errorf("config: set %s: %w", b.env, err)
		}
		applied++
	}

	if secrets > 0 {
		if st, err := f.Stat(); err == nil && st.Mode().Perm()&0o077 != 0 {
			log.Warn("config: file holds credentials but is readable by other users",
				slog.String("path", path),
				slog.String("mode", st.Mode().Perm().String()),
				slog.Int("credentials", secrets),
			)
		}
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// resolveConfigPath returns the first existing file among: the explicit
// path, $DOCRAG_CONFIG, ~/.docrag/config.yaml and ./docrag.yaml.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: --config %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{os.Getenv("DOCRAG_CONFIG")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".docrag", "config.yaml"))
	}
	candidates = append(candidates, "docrag.yaml")

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

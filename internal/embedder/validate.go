package embedder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// embeddingMarkers identify dedicated embedding models. They take precedence
// over chatFamilies, so "mistral-embed" is accepted.
var embeddingMarkers = []string{"embed", "bge-", "e5-", "minilm", "gte-", "titan-embed"}

// chatFamilies are name fragments of chat and completion model families.
var chatFamilies = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama", "mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen", "solar", "vicuna", "falcon", "yi-",
}

// looksLikeChatModel reports whether model is probably a chat model that was
// configured as EMBEDDING_MODEL by mistake.
func looksLikeChatModel(model string) bool {
	name := strings.ToLower(model)
	for _, m := range embeddingMarkers {
		if strings.Contains(name, m) {
			return false
		}
	}
	for _, f := range chatFamilies {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// credential is one setting a backend cannot start without. Any of the
// listed variables satisfies it.
type credential struct {
	what string
	vars []string
}

var requiredByBackend = map[string][]credential{
	"ollama":  nil,
	"bedrock": nil, // resolved through the AWS SDK credential chain
	"openai":  {{"OpenAI API key", []string{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}}},
	"azure": {
		{"Azure API key", []string{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"}},
		{"Azure endpoint", []string{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"}},
	},
	"gemini": {{"Gemini API key", []string{"EMBEDDING_API_KEY", "GOOGLE_API_KEY"}}},
}

// Validate checks the embedding configuration before any document is
// processed and reports every problem at once. A chat model configured as
// EMBEDDING_MODEL only produces a warning.
func Validate(log *slog.Logger) error {
	backend := Backend()
	creds, known := requiredByBackend[backend]
	if !known {
		return fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure, bedrock, gemini)", backend)
	}
	if os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Debug("embedder: EMBEDDING_PROVIDER not set, inheriting MODEL_PROVIDER", slog.String("backend", backend))
	}

	var errs []error
	for _, c := range creds {
		if firstEnv(c.vars...) == "" {
			errs = append(errs, fmt.Errorf("embedder: no %s found, set %s", c.what, strings.Join(c.vars, " or ")))
		}
	}
	for _, key := range []string{"EMBEDDING_DIMENSIONS", "EMBEDDING_BATCH_SIZE"} {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("embedder: %s must be a positive integer, got %q", key, v))
			}
		}
	}

	if model := os.Getenv("EMBEDDING_MODEL"); looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("backend", backend),
			slog.String("default_for_backend", defaultModelFor(backend)),
		)
	}
	return errors.Join(errs...)
}

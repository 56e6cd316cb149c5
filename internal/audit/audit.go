// Package audit records one structured entry per CLI invocation: the command,
// the config file it ran with, and the docrag-relevant environment grouped by
// concern. Credentials are logged as presence or absence only.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/54b3r/docrag-go/internal/logging"
)

// section is a group of environment variables logged under one key.
type section struct {
	name string
	vars []string
}

// sections lists, in log order, the variables every audit entry reports.
var sections = []section{
	{"model", []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"OLLAMA_HOST", "OLLAMA_MODEL",
		"OPENAI_API_KEY", "OPENAI_MODEL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"ARK_API_KEY", "ARK_MODEL",
		"GOOGLE_API_KEY", "GEMINI_MODEL",
		"AWS_REGION", "AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"BEDROCK_MODEL_ID",
	}},
	{"embedding", []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_BATCH_SIZE", "BEDROCK_EMBED_MODEL_ID",
	}},
	{"index", []string{
		"VECTOR_BACKEND", "DOCRAG_INDEX_DB",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY", "QDRANT_TLS",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RAG_TOP_K", "RAG_CONTEXT_LIMIT",
	}},
	{"history", []string{
		"DOCRAG_HISTORY_BACKEND", "DOCRAG_HISTORY_DB", "HISTORY_DEPTH", "MAX_CONTEXT_TOKENS",
	}},
	{"server", []string{
		"DOCRAG_HOST", "DOCRAG_PORT", "DOCRAG_API_KEY", "DOCRAG_RATE_LIMIT", "DOCRAG_RATE_BURST",
	}},
	{"observability", []string{
		"LOG_LEVEL", "LOG_FORMAT", "LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY",
	}},
}

// IsSecret reports whether the variable key holds a credential: any *_KEY,
// *_KEY_ID or *_TOKEN name.
func IsSecret(key string) bool {
	return strings.HasSuffix(key, "_KEY") ||
		strings.HasSuffix(key, "_KEY_ID") ||
		strings.HasSuffix(key, "_TOKEN")
}

// LogCommandStart emits the opening audit entry for command.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	logStart(ctx, log, command, configPath, os.Getenv)
}

func logStart(ctx context.Context, log *slog.Logger, command, configPath string, getenv func(string) string) {
	attrs := make([]slog.Attr, 0, 2+len(sections))
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, sec := range sections {
		vals := make([]any, 0, len(sec.vars))
		for _, key := range sec.vars {
			vals = append(vals, slog.String(key, SanitiseKey(key, getenv(key))))
		}
		attrs = append(attrs, slog.Group(sec.name, vals...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// LogCommandEnd emits the closing audit entry with the command's duration and
// outcome. A failed command is logged at warn.
func LogCommandEnd(ctx context.Context, log *slog.Logger, command string, started time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.Duration("duration", time.Since(started)),
		slog.Bool("ok", err == nil),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	log.LogAttrs(ctx, level, "audit: command end", attrs...)
}

// SanitiseKey returns value for ordinary variables and logging.Set or
// logging.Unset for credentials. An empty value is always logging.Unset.
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return logging.Unset
	case IsSecret(key):
		return logging.Set
	default:
		return value
	}
}

// sanitiseConfigPath returns "none" for an empty path and shortens the home
// directory to "~".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home+string(os.PathSeparator)) {
		return "~" + p[len(home):]
	}
	return p
}

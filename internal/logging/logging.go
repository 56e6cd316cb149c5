// Package logging builds the process logger and carries it through
// context.Context so request and command code can log with the attributes of
// whoever called them.
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces the value of attributes whose key names a credential.
const Redacted = "[redacted]"

// Presence markers stand in for a credential's value in audit output. They
// pass through redaction unchanged.
const (
	Set   = "set"
	Unset = "unset"
)

type ctxKey struct{}

// New returns a logger on stderr configured from LOG_LEVEL and LOG_FORMAT.
func New() *slog.Logger {
	return NewWriter(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// NewWriter returns a logger on w. Every record carries service=docrag, and
// credential-looking attributes are masked, see isSecretKey.
func NewWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() != slog.KindString || !isSecretKey(a.Key) {
				return a
			}
			switch a.Value.String() {
			case "", Set, Unset:
				return a
			}
			return slog.String(a.Key, Redacted)
		},
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("service", "docrag"))
}

// isSecretKey matches attribute keys such as api_key, DOCRAG_API_KEY,
// langfuse_secret, bearer_token or authorization.
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	if k == "authorization" {
		return true
	}
	for _, suffix := range []string{"_key", "token", "secret", "password"} {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	default:
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return slog.LevelInfo
		}
		return lvl
	}
}

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docrag-go/internal/logging"
)

// apiKeyHeader is accepted as an alternative to an Authorization bearer token
// for clients that cannot set Authorization, e.g. some upload tools.
const apiKeyHeader = "X-API-Key"

// authMiddleware requires the configured API key on every request to next.
// An empty apiKey disables the check. Keys are compared as SHA-256 digests so
// the comparison time does not depend on the presented key's length.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := sha256.Sum256([]byte(apiKey))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, source := presentedKey(r)
		if presented == "" {
			reject(w, r, "missing credentials", `Bearer realm="docrag"`, "authorization required")
			return
		}

		got := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			reject(w, r, "invalid "+source, `Bearer realm="docrag", error="invalid_token"`, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter, r *http.Request, reason, challenge, msg string) {
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(r.Context(), w, http.StatusUnauthorized, msg)
}

// presentedKey returns the key the client sent and which header carried it.
// A bearer token wins when both headers are present.
func presentedKey(r *http.Request) (key, source string) {
	if tok := bearerToken(r); tok != "" {
		return tok, "bearer token"
	}
	if k := strings.TrimSpace(r.Header.Get(apiKeyHeader)); k != "" {
		return k, "api key header"
	}
	return "", ""
}

// bearerToken returns the credentials of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

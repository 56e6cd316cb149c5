package server

import (
	"log/slog"
	"net/http"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/store"
)

// handleHistory handles GET /api/history. A missing transcript store or a
// read failure yields an empty transcript.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := historyResponse{Session: s.deps.Session, Messages: []store.Message{}}

	if s.deps.Transcript != nil {
		msgs, err := s.deps.Transcript.All(ctx, s.deps.Session)
		if err != nil {
			logging.FromContext(ctx).Warn("transcript: load failed", slog.Any("error", err))
		} else if msgs != nil {
			resp.Messages = msgs
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// handleClearHistory handles DELETE /api/history. A storage failure is
// logged and reported in the body, not as an HTTP error.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cleared := true

	if s.deps.Transcript != nil {
		if err := s.deps.Transcript.Clear(ctx, s.deps.Session); err != nil {
			logging.FromContext(ctx).Warn("transcript: clear failed", slog.Any("error", err))
			cleared = false
		}
	}
	writeJSON(ctx, w, http.StatusOK, map[string]bool{"cleared": cleared})
}

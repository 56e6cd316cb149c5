package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docrag-go/internal/logging"
)

// maxQuestionBytes caps the POST /api/chat body.
const maxQuestionBytes = 64 << 10

// handleChat handles POST /api/chat. A chat model failure is not an HTTP
// error: the answer carries "Error: ..." and the error field is set.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(ctx, w, http.StatusBadRequest, "question is required")
		return
	}

	chatCtx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	ans := s.deps.Agent.Ask(chatCtx, req.Question)

	outcome := outcomeOK
	switch {
	case errors.Is(chatCtx.Err(), context.DeadlineExceeded):
		outcome = outcomeTimeout
	case ans.Err != nil:
		outcome = outcomeError
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	resp := chatResponse{Answer: ans.Text, Sources: ans.Sources}
	if ans.Err != nil {
		resp.Error = ans.Err.Error()
		log.Warn("chat failed", slog.String("outcome", outcome), slog.Any("error", ans.Err))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

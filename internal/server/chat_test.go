package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/docrag-go/internal/agent"
)

func postChat(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleChat_MissingQuestion(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	for _, body := range []string{`{}`, `{"question":"   "}`} {
		w := h.do(postChat(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
	}
	if len(h.asker.questions) != 0 {
		t.Error("agent should not be called for invalid requests")
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	w := h.do(postChat(`not-json`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := decodeJSON[errorResponse](t, w); resp.Error == "" {
		t.Error("expected JSON error body")
	}
}

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.asker.answer = agent.Answer{
		Text:    "Revenue grew 12%.",
		Sources: []agent.Source{{Name: "report.pdf", ChunkIndex: 3, Distance: 0.1}},
	}

	w := h.do(postChat(`{"question":"  How much did revenue grow?  "}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[chatResponse](t, w)
	if resp.Answer != "Revenue grew 12%." || resp.Error != "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Name != "report.pdf" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if h.asker.questions[0] != "How much did revenue grow?" {
		t.Errorf("question passed to agent = %q", h.asker.questions[0])
	}
	if got := counterValue(t, h.reg, "docrag_chat_requests_total", "outcome", outcomeOK); got != 1 {
		t.Errorf("ok counter = %v", got)
	}
}

// TestHandleChat_AgentError verifies that a chat failure is delivered in-band
// with a 200 so clients can show the error text as the answer.
func TestHandleChat_AgentError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.asker.answer = agent.Answer{Text: "Error: LLM unavailable", Err: errors.New("LLM unavailable")}

	w := h.do(postChat(`{"question":"q"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON[chatResponse](t, w)
	if resp.Answer != "Error: LLM unavailable" || resp.Error != "LLM unavailable" {
		t.Errorf("resp = %+v", resp)
	}
	if got := counterValue(t, h.reg, "docrag_chat_requests_total", "outcome", outcomeError); got != 1 {
		t.Errorf("error counter = %v", got)
	}
}

func TestHandleChat_Timeout(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.ChatTimeout = 20 * time.Millisecond })
	h.asker.block = true

	w := h.do(postChat(`{"question":"slow"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := counterValue(t, h.reg, "docrag_chat_requests_total", "outcome", outcomeTimeout); got != 1 {
		t.Errorf("timeout counter = %v", got)
	}
}

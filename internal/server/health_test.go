package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string               { return f.name }
func (f *fakePinger) Ping(context.Context) error { return f.err }

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decodeJSON[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		{name: "no dependencies", wantCode: http.StatusOK, wantReady: true, wantOK: []bool{}},
		{
			name:      "all healthy",
			pingers:   []Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "index"}},
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{true, true},
		},
		{
			name:     "index down",
			pingers:  []Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "index", err: down}},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{true, false},
		},
		{
			name:     "everything down",
			pingers:  []Pinger{&fakePinger{name: "ollama", err: down}, &fakePinger{name: "history", err: down}},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			s.pingers = tc.pingers

			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantCode, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			resp := decodeJSON[readyResponse](t, w)
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if resp.Checks == nil || len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("checks = %+v", resp.Checks)
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d name = %q, want %q", i, c.Name, tc.pingers[i].Name())
				}
				if c.OK != tc.wantOK[i] {
					t.Errorf("check %q ok = %v", c.Name, c.OK)
				}
				if c.OK == (c.Error != "") {
					t.Errorf("check %q: ok=%v but error=%q", c.Name, c.OK, c.Error)
				}
			}
		})
	}
}

// barrierPinger succeeds only if every pinger sharing its WaitGroup has
// started before the deadline, which cannot happen when probes run one by one.
type barrierPinger struct {
	name    string
	started *sync.WaitGroup
}

func (b *barrierPinger) Name() string { return b.name }

func (b *barrierPinger) Ping(ctx context.Context) error {
	b.started.Done()
	all := make(chan struct{})
	go func() { b.started.Wait(); close(all) }()
	select {
	case <-all:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("peers never started")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestProbeAll_RunsConcurrently(t *testing.T) {
	t.Parallel()

	var started sync.WaitGroup
	started.Add(3)
	pingers := []Pinger{
		&barrierPinger{name: "a", started: &started},
		&barrierPinger{name: "b", started: &started},
		&barrierPinger{name: "c", started: &started},
	}

	checks := probeAll(context.Background(), pingers)
	for i, c := range checks {
		if !c.OK || c.Name != pingers[i].Name() {
			t.Errorf("check %d = %+v", i, c)
		}
	}
}

func TestReadyResponse_JSONShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(readyResponse{Ready: true, Checks: []readyCheck{{Name: "index", OK: true, LatencyMS: 3}}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"ready":true,"checks":[{"name":"index","ok":true,"latency_ms":3}]}`
	if string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}
}

// pingChat counts Generate calls and returns err.
type pingChat struct {
	calls int
	err   error
}

func (p *pingChat) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return schema.AssistantMessage("pong", nil), nil
}

func (p *pingChat) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

// checkFunc adapts a function to provider.HealthChecker.
type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestLLMPinger(t *testing.T) {
	t.Parallel()

	t.Run("health check preferred", func(t *testing.T) {
		t.Parallel()
		chat := &pingChat{}
		p := NewLLMPinger(chat, checkFunc(func(context.Context) error { return nil }), "ollama")
		if err := p.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		if chat.calls != 0 {
			t.Errorf("Generate called %d times", chat.calls)
		}
		if p.Name() != "ollama" {
			t.Errorf("Name = %q", p.Name())
		}
	})

	t.Run("health check failure", func(t *testing.T) {
		t.Parallel()
		p := NewLLMPinger(&pingChat{}, checkFunc(func(context.Context) error { return errors.New("503") }), "openai")
		if err := p.Ping(context.Background()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("generate fallback", func(t *testing.T) {
		t.Parallel()
		chat := &pingChat{}
		p := NewLLMPinger(chat, nil, "bedrock")
		if err := p.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		if chat.calls != 1 {
			t.Errorf("Generate called %d times, want 1", chat.calls)
		}
	})
}

func TestGenerateProbe_RemembersSuccess(t *testing.T) {
	t.Parallel()
	chat := &pingChat{}
	clock := time.Unix(1_700_000_000, 0)
	g := &generateProbe{model: chat, ttl: 30 * time.Second, now: func() time.Time { return clock }}
	ctx := context.Background()

	if err := g.ping(ctx); err != nil {
		t.Fatalf("first ping: %v", err)
	}
	clock = clock.Add(10 * time.Second)
	if err := g.ping(ctx); err != nil {
		t.Fatalf("cached ping: %v", err)
	}
	if chat.calls != 1 {
		t.Fatalf("Generate called %d times within ttl, want 1", chat.calls)
	}

	clock = clock.Add(30 * time.Second)
	chat.err = errors.New("throttled")
	if err := g.ping(ctx); err == nil {
		t.Fatal("expected error once the cached success expired")
	}
	if err := g.ping(ctx); err == nil {
		t.Error("a failure must not be cached as success")
	}
	if chat.calls != 3 {
		t.Errorf("Generate called %d times, want 3", chat.calls)
	}
}

func TestNamedPinger(t *testing.T) {
	t.Parallel()
	inner := &fakePinger{err: errors.New("locked")}
	p := NewNamedPinger("index", inner)
	if p.Name() != "index" {
		t.Errorf("Name = %q", p.Name())
	}
	if err := p.Ping(context.Background()); err == nil || err.Error() != "locked" {
		t.Errorf("Ping = %v", err)
	}
}

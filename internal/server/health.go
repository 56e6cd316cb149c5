package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/docrag-go/internal/logging"
)

// probeTimeout bounds each dependency probe of a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report whether it is reachable. Ping is
// called concurrently with other pingers and must be goroutine safe.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses, e.g. "index".
	Name() string
}

type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleHealth answers GET /api/health. It only proves the process serves
// HTTP and never touches a dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady answers GET /api/ready with 200 when every dependency answers
// its probe and 503 otherwise. Checks are listed in registration order.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := probeAll(r.Context(), s.pingers)

	resp := readyResponse{Ready: true, Checks: checks}
	log := logging.FromContext(r.Context())
	for _, c := range checks {
		if c.OK {
			continue
		}
		resp.Ready = false
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.String("error", c.Error),
			slog.Int64("latency_ms", c.LatencyMS),
		)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, status, resp)
}

// probeAll pings every dependency in parallel, each under probeTimeout, so a
// readiness check takes as long as its slowest probe.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))

	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return checks
}

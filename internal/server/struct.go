package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docrag-go/internal/agent"
	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request,
	// including multipart uploads.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full ingestion of the largest expected upload.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single /api/chat request (default: 2m).
	ChatTimeout time.Duration
	// MaxUploadBytes caps the body of POST /api/documents (default: 64 MiB).
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on chat and
	// upload (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is required, as a Bearer token or X-API-Key header, on all /api
	// routes except health and readiness. Empty disables authentication.
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Deps are the long-lived handles the server delegates to. They are built
// once by the serve command and shared by every request.
type Deps struct {
	// Agent answers questions.
	Agent asker
	// Pipeline ingests uploads.
	Pipeline ingester
	// Catalog lists and deletes documents.
	Catalog cataloger
	// Transcript backs the history endpoints. May be nil.
	Transcript store.TranscriptStore
	// Session is the transcript session exposed by the history endpoints.
	// Defaults to store.DefaultSession.
	Session string
}

// asker is satisfied by *agent.Agent; tests inject a fake.
type asker interface {
	Ask(ctx context.Context, question string) agent.Answer
}

// ingester is satisfied by *ingestion.Pipeline.
type ingester interface {
	Ingest(ctx context.Context, uploads []ingestion.Upload, opts ingestion.Options) []ingestion.Outcome
}

// cataloger is satisfied by *catalog.Catalog.
type cataloger interface {
	List(ctx context.Context) (catalog.Listing, error)
	Delete(ctx context.Context, hash string) error
}

// Server is the HTTP server in front of the ingestion pipeline and the agent.
type Server struct {
	// deps holds the request delegates.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// chatResponse is the JSON body returned by POST /api/chat.
type chatResponse struct {
	// Answer is the model's reply, or "Error: ..." when the chat call failed.
	Answer string `json:"answer"`
	// Sources lists the chunks placed in the prompt, nearest first.
	Sources []agent.Source `json:"sources"`
	// Error repeats the failure reason when the chat call failed.
	Error string `json:"error,omitempty"`
}

// uploadResponse is the JSON body returned by POST /api/documents.
type uploadResponse struct {
	// Results holds one outcome per uploaded file, in upload order.
	Results []ingestion.Outcome `json:"results"`
}

// historyResponse is the JSON body returned by GET /api/history.
type historyResponse struct {
	Session  string          `json:"session"`
	Messages []store.Message `json:"messages"`
}

// errorResponse is the JSON body of every 4xx/5xx produced by the handlers.
type errorResponse struct {
	Error string `json:"error"`
}

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/provider"
)

// generateProbeTTL is how long a successful generate-based probe is trusted
// before the model is called again.
const generateProbeTTL = 30 * time.Second

// probe is a Pinger built from a label and a check function.
type probe struct {
	name  string
	check func(ctx context.Context) error
}

func (p *probe) Name() string                   { return p.name }
func (p *probe) Ping(ctx context.Context) error { return p.check(ctx) }

// NewNamedPinger labels anything with a context-aware Ping, such as the
// SQLite index and transcript stores.
func NewNamedPinger(name string, p interface{ Ping(context.Context) error }) Pinger {
	return &probe{name: name, check: p.Ping}
}

// NewQdrantPinger probes Qdrant with its HealthCheck RPC. The collection is
// not required to exist yet.
func NewQdrantPinger(client *qdrant.Client) Pinger {
	return &probe{name: "qdrant", check: func(ctx context.Context) error {
		if _, err := client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		return nil
	}}
}

// NewLLMPinger probes the chat backend labelled name. hc is the backend's
// zero-cost listing probe; when it is nil the pinger falls back to a
// one-token Generate call whose success is remembered for generateProbeTTL.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthChecker, name string) Pinger {
	if hc != nil {
		return &probe{name: name, check: func(ctx context.Context) error {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("%s health check failed: %w", name, err)
			}
			return nil
		}}
	}
	g := &generateProbe{model: m, ttl: generateProbeTTL, now: time.Now}
	return &probe{name: name, check: g.ping}
}

// generateProbe pings a chat model by asking for a single token.
type generateProbe struct {
	model model.BaseChatModel
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	lastOK time.Time
}

func (g *generateProbe) ping(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastOK.IsZero() && g.now().Sub(g.lastOK) < g.ttl {
		return nil
	}

	logging.FromContext(ctx).Debug("pinger: probing chat model with a one-token generate")
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}, model.WithMaxTokens(1))
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		g.lastOK = time.Time{}
		return fmt.Errorf("generate failed: %w", err)
	}
	g.lastOK = g.now()
	return nil
}

package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/provider"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/store"
)

// newServeCmd constructs the `docrag serve` command, which builds every
// long-lived handle once and serves the HTTP API until interrupted.
func newServeCmd(inv *invocation) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docrag HTTP API",
		Long: `Start the docrag HTTP server.

The server exposes document upload, listing and deletion, question
answering, transcript access, health/readiness probes and Prometheus
metrics. Set DOCRAG_API_KEY to require that key on /api routes, sent
as "Authorization: Bearer <key>" or "X-API-Key: <key>".

Examples:
  docrag serve
  docrag serve --port 9090
  MODEL_PROVIDER=bedrock VECTOR_BACKEND=qdrant docrag serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := inv.log
			s := inv.settings
			if cmd.Flags().Changed("host") {
				s.Host = host
			}
			if cmd.Flags().Changed("port") {
				s.Port = port
			}

			var c closers
			defer c.closeAll(log)

			idx, indexPinger, err := openIndex(ctx, s, log, &c)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			transcript, historyPinger, err := openTranscript(s, log, &c)
			if err != nil {
				log.Warn("history: failed to open store, disabling", slog.Any("error", err))
				transcript, historyPinger = nil, nil
			}

			emb, err := newEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			cat := catalog.New(idx)
			pipeline, err := newPipeline(emb, idx, cat, s)
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			stack, err := newChatStack(ctx, s, emb, idx, transcript, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(stack.chatModel, provider.NewHealthCheck(stack.providerCfg), string(stack.providerCfg.Backend)),
			}
			for _, p := range []server.Pinger{indexPinger, historyPinger} {
				if p != nil {
					pingers = append(pingers, p)
				}
			}

			srv, err := server.New(server.Deps{
				Agent:      stack.agent,
				Pipeline:   pipeline,
				Catalog:    cat,
				Transcript: transcript,
				Session:    store.DefaultSession,
			}, &server.Config{
				Host:      s.Host,
				Port:      s.Port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: s.RateLimit,
				RateBurst: s.RateBurst,
				APIKey:    s.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (overrides DOCRAG_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (overrides DOCRAG_PORT)")

	return cmd
}

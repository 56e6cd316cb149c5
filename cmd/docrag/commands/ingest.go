package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/ingestion"
)

// newIngestCmd constructs the `docrag ingest` command, which indexes local
// files into the configured vector index.
func newIngestCmd(inv *invocation) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest [--force] FILE...",
		Short: "Index PDF, text or markdown files",
		Long: `Extract, chunk and embed the given files into the vector index.

Each file is fingerprinted by its content. A file whose fingerprint is
already indexed is skipped unless --force is given, in which case its
existing chunks are replaced.

Examples:
  docrag ingest handbook.pdf
  docrag ingest notes/*.md
  docrag ingest --force report.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := inv.log

			var c closers
			defer c.closeAll(log)

			idx, _, err := openIndex(ctx, inv.settings, log, &c)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := newEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			pipeline, err := newPipeline(emb, idx, catalog.New(idx), inv.settings)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			uploads := make([]ingestion.Upload, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				uploads = append(uploads, ingestion.Upload{Name: filepath.Base(path), Data: data})
			}

			log.Info("starting ingestion", slog.Int("documents", len(uploads)), slog.Bool("force", force))

			outcomes := pipeline.Ingest(ctx, uploads, ingestion.Options{
				Force:    force,
				Progress: func(msg string) { log.Info(msg) },
			})

			failed := 0
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				fmt.Fprintln(out, o.Message)
				if o.Status == ingestion.StatusFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("ingest: %d of %d documents failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-index files whose fingerprint is already present")

	return cmd
}

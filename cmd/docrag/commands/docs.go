package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/catalog"
)

// newDocsCmd constructs the `docrag docs` command group.
func newDocsCmd(inv *invocation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List or delete indexed documents",
	}
	cmd.AddCommand(newDocsListCmd(inv), newDocsDeleteCmd(inv))
	return cmd
}

func newDocsListCmd(inv *invocation) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents with their chunk counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var c closers
			defer c.closeAll(inv.log)

			idx, _, err := openIndex(ctx, inv.settings, inv.log, &c)
			if err != nil {
				return fmt.Errorf("docs: %w", err)
			}
			listing, err := catalog.New(idx).List(ctx)
			if err != nil {
				return fmt.Errorf("docs: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tHASH\tCHUNKS")
			for _, d := range listing.Documents {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", d.Name, d.Hash, d.Chunks)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d documents, %d embeddings\n", len(listing.Documents), listing.Embeddings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")

	return cmd
}

func newDocsDeleteCmd(inv *invocation) *cobra.Command {
	return &cobra.Command{
		Use:   "delete HASH",
		Short: "Remove a document and all of its chunks from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var c closers
			defer c.closeAll(inv.log)

			idx, _, err := openIndex(ctx, inv.settings, inv.log, &c)
			if err != nil {
				return fmt.Errorf("docs: %w", err)
			}

			hash := strings.ToLower(strings.TrimSpace(args[0]))
			if err := catalog.New(idx).Delete(ctx, hash); err != nil {
				return fmt.Errorf("docs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", hash)
			return nil
		},
	}
}

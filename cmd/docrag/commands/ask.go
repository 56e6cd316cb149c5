package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newAskCmd constructs the `docrag ask` command, which answers a single
// question from the indexed documents and prints the cited sources.
func newAskCmd(inv *invocation) *cobra.Command {
	var noSources bool

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a question about the indexed documents",
		Long: `Retrieve the passages most relevant to the question and ask the chat
model to answer from them. The answer is followed by the list of sources.

Examples:
  docrag ask "what is the notice period in the contract?"
  docrag ask --no-sources "summarise the onboarding guide"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := inv.log

			var c closers
			defer c.closeAll(log)

			idx, _, err := openIndex(ctx, inv.settings, log, &c)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			transcript, _, err := openTranscript(inv.settings, log, &c)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			emb, err := newEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			stack, err := newChatStack(ctx, inv.settings, emb, idx, transcript, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			ans := stack.agent.Ask(ctx, question)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if !noSources && len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range ans.Sources {
					fmt.Fprintf(out, "  - %s (chunk %d, distance %.3f)\n", src.Name, src.ChunkIndex, src.Distance)
				}
			}
			if ans.Err != nil {
				return fmt.Errorf("ask: %w", ans.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Print only the answer")

	return cmd
}

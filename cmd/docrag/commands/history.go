package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/store"
)

// newHistoryCmd constructs the `docrag history` command group operating on
// the default session transcript.
func newHistoryCmd(inv *invocation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the conversation transcript",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the transcript, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				var c closers
				defer c.closeAll(inv.log)

				t, _, err := openTranscript(inv.settings, inv.log, &c)
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				if err := requireTranscript(t); err != nil {
					return fmt.Errorf("history: %w", err)
				}
				msgs, err := t.All(ctx, store.DefaultSession)
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(msgs) == 0 {
					fmt.Fprintln(out, "(no messages)")
					return nil
				}
				for _, m := range msgs {
					fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), m.Role, m.Content)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every message of the transcript",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				var c closers
				defer c.closeAll(inv.log)

				t, _, err := openTranscript(inv.settings, inv.log, &c)
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				if err := requireTranscript(t); err != nil {
					return fmt.Errorf("history: %w", err)
				}
				if err := t.Clear(ctx, store.DefaultSession); err != nil {
					return fmt.Errorf("history: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			},
		},
	)
	return cmd
}

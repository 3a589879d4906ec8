package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

func newChatCommand(e *env) *cobra.Command {
	var req openclaw.MessageRequest

	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send one message to an agent and print the reply",
		Example: `  claw-deck chat "summarize today's sessions"
  claw-deck chat --agent scout --thinking low "what changed?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Message = strings.Join(args, " ")

			d, err := e.openDeck()
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.SendChat(cmd.Context(), req)
			if err != nil {
				return err
			}
			return e.render(res, func(w io.Writer) error {
				if res.Reply == nil {
					_, err := fmt.Fprintln(w, "(no reply text)")
					return err
				}
				_, err := fmt.Fprintln(w, res.Reply.Text)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&req.AgentID, "agent", "", "Agent id (default agent when empty)")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Session id to continue")
	cmd.Flags().StringVar(&req.Thinking, "thinking", "", "Thinking level: off, minimal, low, medium or high")
	return cmd
}

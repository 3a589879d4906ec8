package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

func newSessionsCommand(e *env) *cobra.Command {
	var (
		active int
		filter string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List gateway sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if active < 0 {
				return fmt.Errorf("--active must be >= 0, got %d", active)
			}
			return e.withCLI(func(cli *openclaw.Client) error {
				sessions, err := cli.ListSessions(cmd.Context(), active)
				if err != nil {
					return err
				}
				if filter != "" {
					sessions = deck.FilterSessions(sessions, filter)
				}
				if sessions == nil {
					sessions = []openclaw.Session{}
				}
				return e.render(sessions, func(w io.Writer) error {
					return writeSessions(w, sessions, time.Now())
				})
			})
		},
	}

	cmd.Flags().IntVar(&active, "active", 0, "Only sessions active within the last N minutes")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Fuzzy filter on key and model")
	return cmd
}

func writeSessions(w io.Writer, sessions []openclaw.Session, now time.Time) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions.")
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		updated := "-"
		if t := s.UpdatedTime(); !t.IsZero() {
			updated = now.Sub(t).Truncate(time.Second).String() + " ago"
		}
		rows = append(rows, []string{s.Key, s.AgentID(), s.Model, fmt.Sprint(s.TotalTokens), updated})
	}
	return writeTable(w, []string{"KEY", "AGENT", "MODEL", "TOKENS", "UPDATED"}, rows)
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

func newGatewayCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Inspect and control the openclaw gateway service",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show gateway status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return e.withCLI(func(cli *openclaw.Client) error {
					st, err := cli.GatewayStatus(cmd.Context())
					if err != nil {
						return err
					}
					return e.render(st, func(w io.Writer) error {
						return writeGatewayStatus(w, st)
					})
				})
			},
		},
		newGatewayActionCommand(e, "start", "Start the gateway in the background", (*openclaw.Client).GatewayStart),
		newGatewayActionCommand(e, "stop", "Stop the gateway", (*openclaw.Client).GatewayStop),
		newGatewayActionCommand(e, "restart", "Restart the gateway", (*openclaw.Client).GatewayRestart),
		newGatewayLogsCommand(e),
	)
	return cmd
}

func newGatewayActionCommand(e *env, name, short string, action func(*openclaw.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withCLI(func(cli *openclaw.Client) error {
				if err := action(cli, cmd.Context()); err != nil {
					return err
				}
				result := map[string]any{"ok": true, "action": name}
				return e.render(result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "gateway %s: ok\n", name)
					return err
				})
			})
		},
	}
}

func newGatewayLogsCommand(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the gateway log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0, got %d", limit)
			}
			return e.withCLI(func(cli *openclaw.Client) error {
				logs, err := cli.GatewayLogs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				lines := strings.Split(strings.TrimRight(logs, "\n"), "\n")
				if logs == "" {
					lines = []string{}
				}
				return e.render(map[string]any{"lines": lines}, func(w io.Writer) error {
					if logs == "" {
						return nil
					}
					_, err := fmt.Fprintln(w, strings.TrimRight(logs, "\n"))
					return err
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 200, "Number of trailing lines (0 for all)")
	return cmd
}

func writeGatewayStatus(w io.Writer, st *openclaw.GatewayStatus) error {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	rows := [][]string{{"state", state}}
	if st.PID > 0 {
		rows = append(rows, []string{"pid", fmt.Sprint(st.PID)})
	}
	if st.Port > 0 {
		rows = append(rows, []string{"port", fmt.Sprint(st.Port)})
	}
	if st.Uptime != "" {
		rows = append(rows, []string{"uptime", st.Uptime})
	}
	if st.Version != "" {
		rows = append(rows, []string{"version", st.Version})
	}
	return writeTable(w, []string{"FIELD", "VALUE"}, rows)
}

// withCLI opens the dashboard for a one-shot CLI call.
func (e *env) withCLI(fn func(cli *openclaw.Client) error) error {
	d, err := e.openDeck()
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d.CLI())
}

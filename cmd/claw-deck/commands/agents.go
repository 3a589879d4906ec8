package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

func newAgentsCommand(e *env) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withCLI(func(cli *openclaw.Client) error {
				agents, err := cli.ListAgents(cmd.Context())
				if err != nil {
					return err
				}
				if filter != "" {
					agents = deck.FilterAgents(agents, filter)
				}
				if agents == nil {
					agents = []openclaw.Agent{}
				}
				return e.render(agents, func(w io.Writer) error {
					if len(agents) == 0 {
						_, err := fmt.Fprintln(w, "No agents.")
						return err
					}
					rows := make([][]string, 0, len(agents))
					for _, a := range agents {
						id := a.ID
						if a.IsDefault {
							id += " (default)"
						}
						rows = append(rows, []string{id, a.Name, a.Model, a.Workspace})
					}
					return writeTable(w, []string{"ID", "NAME", "MODEL", "WORKSPACE"}, rows)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Fuzzy filter on id, name and model")

	cmd.AddCommand(newAgentsAddCommand(e))
	return cmd
}

func newAgentsAddCommand(e *env) *cobra.Command {
	var opts openclaw.AddAgentOptions

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return e.withCLI(func(cli *openclaw.Client) error {
				if err := cli.AddAgent(cmd.Context(), opts); err != nil {
					return err
				}
				return e.render(map[string]any{"ok": true, "name": opts.Name}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Agent %q created.\n", opts.Name)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Workspace, "workspace", "", "Workspace directory for the agent")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model for the agent")
	return cmd
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/web"
)

// errSmokeFailed is returned after the checks were printed.
var errSmokeFailed = errors.New("smoke test failed")

type smokeCheck struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func newSmokeCommand(e *env) *cobra.Command {
	var agent string

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Check that the gateway, agents and UI assets are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := e.runSmoke(cmd.Context(), agent)
			err := e.render(checks, func(w io.Writer) error {
				for _, c := range checks {
					mark := "✓"
					if !c.OK {
						mark = "✗"
					}
					line := fmt.Sprintf("%s %s", mark, c.Name)
					if c.Detail != "" {
						line += ": " + c.Detail
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, c := range checks {
				if !c.OK {
					return errSmokeFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "main", "Agent that must be configured")
	return cmd
}

func (e *env) runSmoke(ctx context.Context, agent string) []smokeCheck {
	checks := make([]smokeCheck, 0, 4)

	d, err := e.openDeck()
	if err != nil {
		return append(checks, smokeCheck{Name: "open dashboard", Detail: err.Error()})
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	cli := d.CLI()

	gw := smokeCheck{Name: "gateway running"}
	if st, err := cli.GatewayStatus(ctx); err != nil {
		gw.Detail = err.Error()
	} else if !st.Running {
		gw.Detail = "gateway is not running"
	} else {
		gw.OK = true
		if st.PID > 0 {
			gw.Detail = fmt.Sprintf("pid %d", st.PID)
		}
	}
	checks = append(checks, gw)

	ag := smokeCheck{Name: fmt.Sprintf("agent %q present", agent)}
	if agents, err := cli.ListAgents(ctx); err != nil {
		ag.Detail = err.Error()
	} else {
		ag.Detail = fmt.Sprintf("not among %d agents", len(agents))
		for _, a := range agents {
			if a.ID == agent {
				ag.OK = true
				ag.Detail = ""
				break
			}
		}
	}
	checks = append(checks, ag)

	ss := smokeCheck{Name: "sessions --json valid"}
	if sessions, err := cli.ListSessions(ctx, 0); err != nil {
		ss.Detail = err.Error()
	} else {
		ss.OK = true
		ss.Detail = fmt.Sprintf("%d sessions", len(sessions))
	}
	checks = append(checks, ss)

	assets := smokeCheck{Name: "UI assets embedded", OK: true}
	if err := web.AssetsPresent(); err != nil {
		assets.OK = false
		assets.Detail = err.Error()
	}
	return append(checks, assets)
}


package deck

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// Snapshot is everything Mission Control renders in one poll. Each section is
// fetched independently; a failed section carries its error and leaves the
// others intact.
type Snapshot struct {
	FetchedAt time.Time `json:"fetchedAt" yaml:"fetchedAt"`

	Gateway      *openclaw.GatewayStatus `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	GatewayError string                  `json:"gatewayError,omitempty" yaml:"gatewayError,omitempty"`

	Agents      []openclaw.Agent `json:"agents" yaml:"agents"`
	AgentsError string           `json:"agentsError,omitempty" yaml:"agentsError,omitempty"`

	Sessions      []openclaw.Session `json:"sessions" yaml:"sessions"`
	SessionsError string             `json:"sessionsError,omitempty" yaml:"sessionsError,omitempty"`

	// Tree is Sessions ordered by the spawn hierarchy.
	Tree       []hierarchy.Node    `json:"tree" yaml:"tree"`
	Connection gateway.Diagnostics `json:"connection" yaml:"connection"`
}

// Snapshot fetches gateway status, agents and sessions concurrently.
func (d *Deck) Snapshot(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Agents:   []openclaw.Agent{},
		Sessions: []openclaw.Session{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := d.cli.GatewayStatus(gctx)
		if err != nil {
			snap.GatewayError = err.Error()
			return nil
		}
		snap.Gateway = st
		return nil
	})
	g.Go(func() error {
		agents, err := d.cli.ListAgents(gctx)
		if err != nil {
			snap.AgentsError = err.Error()
			return nil
		}
		snap.Agents = agents
		return nil
	})
	g.Go(func() error {
		sessions, err := d.cli.ListSessions(gctx, 0)
		if err != nil {
			snap.SessionsError = err.Error()
			return nil
		}
		snap.Sessions = sessions
		return nil
	})
	_ = g.Wait()

	roots := make([]string, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		roots = append(roots, s.Key)
	}
	snap.Tree = d.hierarchy.Flatten(roots)
	if snap.Tree == nil {
		snap.Tree = []hierarchy.Node{}
	}
	snap.Connection = d.conn.Diagnostics()
	snap.FetchedAt = time.Now()
	return snap
}

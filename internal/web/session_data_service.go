package web

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// MissionView is the Mission Control page model: the snapshot with sessions
// flattened into an ordered, indented list.
type MissionView struct {
	GeneratedAt   time.Time               `json:"generatedAt"`
	Gateway       *openclaw.GatewayStatus `json:"gateway,omitempty"`
	GatewayError  string                  `json:"gatewayError,omitempty"`
	Connection    gateway.Diagnostics     `json:"connection"`
	Agents        []openclaw.Agent        `json:"agents"`
	AgentsError   string                  `json:"agentsError,omitempty"`
	SessionsError string                  `json:"sessionsError,omitempty"`
	TotalAgents   int                     `json:"totalAgents"`
	TotalSessions int                     `json:"totalSessions"`
	Items         []MenuItem              `json:"items"`
}

// MenuItem is one row of the flattened session list.
type MenuItem struct {
	Index            int          `json:"index"`
	Level            int          `json:"level"`
	IsSubSession     bool         `json:"isSubSession,omitempty"`
	IsLastSubSession bool         `json:"isLastSubSession,omitempty"`
	Session          *MenuSession `json:"session"`
}

// MenuSession is the session metadata shown in a row. Known is false for ids
// that only the local hierarchy knows about (the gateway no longer lists them).
type MenuSession struct {
	Key           string    `json:"key"`
	AgentID       string    `json:"agentId,omitempty"`
	Label         string    `json:"label,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	Model         string    `json:"model,omitempty"`
	TotalTokens   int64     `json:"totalTokens,omitempty"`
	ContextTokens int64     `json:"contextTokens,omitempty"`
	ParentKey     string    `json:"parentKey,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
	Known         bool      `json:"known"`
}

type snapshotLoader interface {
	Snapshot(ctx context.Context) *deck.Snapshot
}

// SessionDataService turns deck snapshots into web-friendly DTOs.
type SessionDataService struct {
	source snapshotLoader
	now    func() time.Time
}

// NewSessionDataService creates a SessionDataService over source.
func NewSessionDataService(source snapshotLoader) *SessionDataService {
	return &SessionDataService{source: source, now: time.Now}
}

// LoadMissionView fetches a snapshot and flattens it. query fuzzily filters
// agents and sessions; a filtered view is flat (no hierarchy indentation).
func (s *SessionDataService) LoadMissionView(ctx context.Context, query string) (*MissionView, error) {
	if s == nil || s.source == nil {
		return nil, fmt.Errorf("session data service is not configured")
	}
	if s.now == nil {
		s.now = time.Now
	}

	snap := s.source.Snapshot(ctx)
	agents := deck.FilterAgents(snap.Agents, query)

	byKey := make(map[string]openclaw.Session, len(snap.Sessions))
	for _, sess := range snap.Sessions {
		byKey[sess.Key] = sess
	}

	var items []MenuItem
	if query != "" {
		for i, sess := range deck.FilterSessions(snap.Sessions, query) {
			items = append(items, MenuItem{Index: i, Session: toMenuSession(sess, hierarchy.Node{ID: sess.Key}, true)})
		}
	} else {
		items = flattenTree(snap.Tree, byKey)
	}
	if items == nil {
		items = []MenuItem{}
	}

	return &MissionView{
		GeneratedAt:   s.now().UTC(),
		Gateway:       snap.Gateway,
		GatewayError:  snap.GatewayError,
		Connection:    snap.Connection,
		Agents:        agents,
		AgentsError:   snap.AgentsError,
		SessionsError: snap.SessionsError,
		TotalAgents:   len(snap.Agents),
		TotalSessions: len(snap.Sessions),
		Items:         items,
	}, nil
}

func flattenTree(tree []hierarchy.Node, byKey map[string]openclaw.Session) []MenuItem {
	items := make([]MenuItem, 0, len(tree))
	for i, node := range tree {
		sess, known := byKey[node.ID]
		if !known {
			sess = openclaw.Session{Key: node.ID, SessionKey: node.ID}
		}
		items = append(items, MenuItem{
			Index:            i,
			Level:            node.Level,
			IsSubSession:     node.Level > 0,
			IsLastSubSession: node.Level > 0 && isLastChild(tree, i),
			Session:          toMenuSession(sess, node, known),
		})
	}
	return items
}

// isLastChild reports whether no later sibling of tree[i] follows it.
func isLastChild(tree []hierarchy.Node, i int) bool {
	level := tree[i].Level
	for j := i + 1; j < len(tree); j++ {
		switch {
		case tree[j].Level == level:
			return false
		case tree[j].Level < level:
			return true
		}
	}
	return true
}

func toMenuSession(sess openclaw.Session, node hierarchy.Node, known bool) *MenuSession {
	return &MenuSession{
		Key:           sess.Key,
		AgentID:       sess.AgentID(),
		Label:         node.Label,
		Kind:          sess.Kind,
		Model:         sess.Model,
		TotalTokens:   sess.TotalTokens,
		ContextTokens: sess.ContextTokens,
		ParentKey:     node.Parent,
		UpdatedAt:     sess.UpdatedTime(),
		Known:         known,
	}
}

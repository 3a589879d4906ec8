package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

type staticSnapshot struct {
	snap *deck.Snapshot
}

func (s staticSnapshot) Snapshot(context.Context) *deck.Snapshot { return s.snap }

func TestLoadMissionViewTreeShape(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSessionDataService(staticSnapshot{snap: &deck.Snapshot{
		Sessions: []openclaw.Session{
			{Key: "agent:main:a", Model: "m1", TotalTokens: 100},
			{Key: "agent:main:b"},
			{Key: "agent:main:c"},
		},
		Tree: []hierarchy.Node{
			{ID: "agent:main:a"},
			{ID: "agent:main:b", Parent: "agent:main:a", Level: 1},
			{ID: "agent:main:gone", Parent: "agent:main:b", Level: 2, Label: "ghost"},
			{ID: "agent:main:c", Parent: "agent:main:a", Level: 1},
		},
	}})
	svc.now = func() time.Time { return fixed }

	view, err := svc.LoadMissionView(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, fixed, view.GeneratedAt)
	require.Len(t, view.Items, 4)

	a, b, gone, c := view.Items[0], view.Items[1], view.Items[2], view.Items[3]
	assert.False(t, a.IsSubSession)
	assert.Equal(t, "m1", a.Session.Model)
	assert.Equal(t, int64(100), a.Session.TotalTokens)
	assert.Equal(t, "main", a.Session.AgentID)
	assert.True(t, a.Session.Known)

	assert.True(t, b.IsSubSession)
	assert.False(t, b.IsLastSubSession, "c is a later sibling of b")

	assert.False(t, gone.Session.Known)
	assert.Equal(t, "ghost", gone.Session.Label)
	assert.True(t, gone.IsLastSubSession)

	assert.True(t, c.IsLastSubSession)
	assert.Equal(t, 3, c.Index)
}

func TestLoadMissionViewEmptySnapshot(t *testing.T) {
	svc := NewSessionDataService(staticSnapshot{snap: &deck.Snapshot{}})

	view, err := svc.LoadMissionView(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
}

func TestLoadMissionViewUnconfigured(t *testing.T) {
	var svc *SessionDataService
	_, err := svc.LoadMissionView(context.Background(), "")
	assert.Error(t, err)
}

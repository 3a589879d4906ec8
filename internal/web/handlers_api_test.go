package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/claw-deck/internal/config"
	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/localstore"
	"github.com/openclaw/claw-deck/internal/logging"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

type fakeOpenclaw struct {
	mu       sync.Mutex
	results  map[string]openclaw.Result
	calls    []string
	detached []string
}

func newFakeOpenclaw() *fakeOpenclaw {
	return &fakeOpenclaw{results: map[string]openclaw.Result{
		"gateway status":     {Stdout: "Gateway: running (pid 42, port 18789)"},
		"gateway stop":       {Stdout: "stopped"},
		"gateway restart":    {Stdout: "restarted"},
		"gateway logs":       {Stdout: "one\ntwo\nthree\n"},
		"agents list --json": {Stdout: `[{"id":"main","name":"Main","isDefault":true},{"id":"research","model":"gpt-x"}]`},
		"sessions --json":    {Stdout: `{"sessions":[{"key":"agent:main:root"},{"key":"agent:main:child"},{"key":"agent:research:r1"}]}`},
	}}
}

func (f *fakeOpenclaw) set(cmdline string, res openclaw.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmdline] = res
}

func (f *fakeOpenclaw) called(cmdline string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == cmdline {
			return true
		}
	}
	return false
}

func (f *fakeOpenclaw) Run(_ context.Context, args ...string) openclaw.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.Join(args, " ")
	f.calls = append(f.calls, line)
	if res, ok := f.results[line]; ok {
		return res
	}
	return openclaw.Result{Err: "unexpected command: " + line}
}

func (f *fakeOpenclaw) Detach(args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, strings.Join(args, " "))
	return nil
}

func (f *fakeOpenclaw) Binary() string { return "sh" }

func newTestDeck(t *testing.T, exec openclaw.Executor) *deck.Deck {
	t.Helper()
	store, err := localstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.Dir = t.TempDir()
	d, err := deck.Open(cfg, deck.Options{Executor: exec, Store: store, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestServer(t *testing.T, exec openclaw.Executor, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		Deck:       newTestDeck(t, exec),
		Logger:     logging.Discard(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	srv := NewServer(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestMissionViewFlattensHierarchy(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())
	require.NoError(t, srv.deck.Hierarchy().AddSpawn("agent:main:root", "agent:main:child", "worker"))

	rr := do(t, srv, http.MethodGet, "/api/mission", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	view := decode[MissionView](t, rr)
	require.NotNil(t, view.Gateway)
	assert.True(t, view.Gateway.Running)
	assert.Equal(t, 2, view.TotalAgents)
	assert.Equal(t, 3, view.TotalSessions)
	require.Len(t, view.Items, 3)

	assert.Equal(t, "agent:main:root", view.Items[0].Session.Key)
	assert.Equal(t, 0, view.Items[0].Level)
	assert.Equal(t, "agent:main:child", view.Items[1].Session.Key)
	assert.Equal(t, 1, view.Items[1].Level)
	assert.True(t, view.Items[1].IsSubSession)
	assert.True(t, view.Items[1].IsLastSubSession)
	assert.Equal(t, "worker", view.Items[1].Session.Label)
	assert.Equal(t, "agent:main:root", view.Items[1].Session.ParentKey)
}

func TestMissionViewFilter(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodGet, "/api/mission?q=research", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	view := decode[MissionView](t, rr)
	require.Len(t, view.Agents, 1)
	assert.Equal(t, "research", view.Agents[0].ID)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "agent:research:r1", view.Items[0].Session.Key)
	assert.Equal(t, 0, view.Items[0].Level)
}

func TestMissionViewKeepsPartialFailures(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("agents list --json", openclaw.Result{Err: "exit status 1: boom"})
	fake.set("agents list", openclaw.Result{Err: "exit status 1: still broken"})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodGet, "/api/mission", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	view := decode[MissionView](t, rr)
	assert.Contains(t, view.AgentsError, "boom")
	assert.Contains(t, view.AgentsError, "still broken")
	assert.Empty(t, view.Agents)
	assert.Len(t, view.Items, 3)
}

func TestAgentsList(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[agentsListResponse](t, rr)
	require.Len(t, resp.Agents, 2)
	assert.True(t, resp.Agents[0].IsDefault)
}

func TestAgentsCreate(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("agents add scout --model gpt-x --non-interactive", openclaw.Result{Stdout: "added"})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodPost, "/api/agents", map[string]string{"name": "scout", "model": "gpt-x"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, fake.called("agents add scout --model gpt-x --non-interactive"))

	rr = do(t, srv, http.MethodPost, "/api/agents", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAgentsCreateCLIError(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("agents add scout --non-interactive", openclaw.Result{Err: "exit status 1: already exists"})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodPost, "/api/agents", map[string]string{"name": "scout"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "OPENCLAW_ERROR")
	assert.Contains(t, rr.Body.String(), "already exists")
}

func TestSessionsActiveFilter(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("sessions --json --active 15", openclaw.Result{Stdout: `{"sessions":[{"key":"agent:main:root"}]}`})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodGet, "/api/sessions?active=15", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[sessionsListResponse](t, rr)
	require.Len(t, resp.Sessions, 1)

	rr = do(t, srv, http.MethodGet, "/api/sessions?active=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHierarchyGetAndClear(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())
	require.NoError(t, srv.deck.Hierarchy().AddSpawn("a", "b", ""))

	rr := do(t, srv, http.MethodGet, "/api/hierarchy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[hierarchyResponse](t, rr)
	assert.Equal(t, []string{"b"}, resp.Entries["a"].Children)
	assert.Equal(t, "a", resp.Entries["b"].Parent)

	rr = do(t, srv, http.MethodDelete, "/api/hierarchy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, srv.deck.Hierarchy().Len())
}

func TestGatewayStatusAndActions(t *testing.T) {
	fake := newFakeOpenclaw()
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodGet, "/api/gateway", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[gatewayResponse](t, rr)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 42, resp.Status.PID)
	assert.Equal(t, "cli", resp.Connection.Bridge)

	for _, action := range []string{"start", "stop", "restart"} {
		rr = do(t, srv, http.MethodPost, "/api/gateway/"+action, nil)
		require.Equal(t, http.StatusAccepted, rr.Code, action)
	}
	assert.Equal(t, []string{"gateway start"}, fake.detached)
	assert.True(t, fake.called("gateway stop"))
	assert.True(t, fake.called("gateway restart"))

	rr = do(t, srv, http.MethodPost, "/api/gateway/explode", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/gateway/stop", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGatewayConnectAndDisconnect(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodPost, "/api/gateway/connect", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		return srv.deck.Connection().State() == gateway.StateConnected
	}, 5*time.Second, 10*time.Millisecond)

	rr = do(t, srv, http.MethodPost, "/api/gateway/disconnect", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := decode[gatewayActionResponse](t, rr)
	assert.Equal(t, gateway.StateDisconnected, resp.Connection.State)
}

func TestGatewayStopFailure(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("gateway stop", openclaw.Result{Err: "exit status 1: not running"})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodPost, "/api/gateway/stop", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "not running")
}

func TestGatewayLogsLimit(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodGet, "/api/gateway/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[gatewayLogsResponse](t, rr)
	assert.Equal(t, "two\nthree", strings.TrimSpace(resp.Logs))

	rr = do(t, srv, http.MethodGet, "/api/gateway/logs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSettingsRoundTripRedactsKey(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[settingsResponse](t, rr)
	assert.Equal(t, int64(10000), resp.Polling.MissionControlMs)
	assert.Equal(t, int64(30000), resp.Polling.ChatSessionsMs)

	rr = do(t, srv, http.MethodPut, "/api/settings", deck.GatewaySettings{URL: "ws://127.0.0.1:18789", APIKey: "sk-abcdef1234"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode[settingsResponse](t, rr)
	assert.Equal(t, "ws://127.0.0.1:18789", resp.Gateway.URL)
	assert.NotContains(t, resp.Gateway.APIKey, "abcdef")
	assert.True(t, strings.HasSuffix(resp.Gateway.APIKey, "1234"))
	assert.Equal(t, "sk-abcdef1234", srv.deck.GatewaySettings().APIKey)

	rr = do(t, srv, http.MethodPut, "/api/settings", deck.GatewaySettings{URL: "ftp://nowhere"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatSendAndTranscript(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("agent --message hello --agent research --json", openclaw.Result{Stdout: `{"text":"hi there"}`})
	srv := newTestServer(t, fake)

	rr := do(t, srv, http.MethodPost, "/api/chat", chatSendRequest{Message: "hello", AgentID: "research"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[deck.ChatResult](t, rr)
	require.NotNil(t, res.Reply)
	assert.Equal(t, "hi there", res.Reply.Text)

	rr = do(t, srv, http.MethodGet, "/api/chat?agent=research", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tr := decode[chatTranscriptResponse](t, rr)
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, deck.RoleUser, tr.Entries[0].Role)
	assert.Equal(t, deck.StatusSent, tr.Entries[0].Status)
	assert.Equal(t, deck.RoleAgent, tr.Entries[1].Role)
}

func TestChatSendValidation(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	rr := do(t, srv, http.MethodPost, "/api/chat", chatSendRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/chat", chatSendRequest{Message: "hi", Thinking: "extreme"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatSendRateLimited(t *testing.T) {
	fake := newFakeOpenclaw()
	fake.set("agent --message spam --json", openclaw.Result{Stdout: `{"text":"ok"}`})
	srv := newTestServer(t, fake)

	var limited bool
	for range 10 {
		rr := do(t, srv, http.MethodPost, "/api/chat", chatSendRequest{Message: "spam"})
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
			break
		}
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.True(t, limited, "expected a burst of sends to be rate limited")
}

func TestReadOnlyRejectsMutations(t *testing.T) {
	fake := newFakeOpenclaw()
	srv := newTestServer(t, fake, func(c *Config) { c.ReadOnly = true })

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/chat"},
		{http.MethodPost, "/api/agents"},
		{http.MethodPost, "/api/gateway/stop"},
		{http.MethodPut, "/api/settings"},
		{http.MethodDelete, "/api/hierarchy"},
	} {
		rr := do(t, srv, tc.method, tc.path, map[string]string{})
		assert.Equal(t, http.StatusForbidden, rr.Code, tc.path)
		assert.Contains(t, rr.Body.String(), "READ_ONLY", tc.path)
	}
	assert.False(t, fake.called("gateway stop"))

	rr := do(t, srv, http.MethodGet, "/api/agents", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newFakeOpenclaw())

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/mission"},
		{http.MethodDelete, "/api/agents"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodPost, "/api/gateway"},
		{http.MethodDelete, "/api/chat"},
		{http.MethodPost, "/api/settings"},
	} {
		rr := do(t, srv, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, tc.method+" "+tc.path)
	}
}

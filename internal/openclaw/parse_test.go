package openclaw

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentListing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Agent
	}{
		{
			name:  "two records, second default",
			input: "- main\n  Workspace: /w\n  Model: gpt-x\n- head (default)\n  Workspace: /w2\n  Model: gpt-y\n",
			want: []Agent{
				{ID: "main", Name: "main", Workspace: "/w", Model: "gpt-x"},
				{ID: "head", Name: "head", Workspace: "/w2", Model: "gpt-y", IsDefault: true},
			},
		},
		{
			name:  "final record flushed without trailing newline",
			input: "- solo\n  Model: m",
			want:  []Agent{{ID: "solo", Name: "solo", Model: "m"}},
		},
		{
			name:  "unknown keys ignored",
			input: "- main\n  Bindings: 3\n  Workspace: /w\n  Routing: default\n",
			want:  []Agent{{ID: "main", Name: "main", Workspace: "/w"}},
		},
		{
			name:  "header lines before first marker ignored",
			input: "Agents:\nModel: stray\n- main\n  Model: m\n",
			want:  []Agent{{ID: "main", Name: "main", Model: "m"}},
		},
		{
			name:  "identity sets display name",
			input: "- ops\n  Identity: Ops Bot\n",
			want:  []Agent{{ID: "ops", Name: "Ops Bot"}},
		},
		{
			name:  "marker without details",
			input: "- a\n- b\n",
			want:  []Agent{{ID: "a", Name: "a"}, {ID: "b", Name: "b"}},
		},
		{
			name:  "value containing colons kept whole",
			input: "- main\n  Model: openrouter:anthropic/claude\n",
			want:  []Agent{{ID: "main", Name: "main", Model: "openrouter:anthropic/claude"}},
		},
		{
			name:  "indented dash is not a marker",
			input: "- main\n  - nested item\n  Model: m\n",
			want:  []Agent{{ID: "main", Name: "main", Model: "m"}},
		},
		{
			name:  "ansi colored output",
			input: "\x1b[1m- main\x1b[0m \x1b[32m(default)\x1b[0m\n  Workspace: /w\n",
			want:  []Agent{{ID: "main", Name: "main", Workspace: "/w", IsDefault: true}},
		},
		{
			name:  "crlf line endings",
			input: "- main\r\n  Model: m\r\n",
			want:  []Agent{{ID: "main", Name: "main", Model: "m"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAgentListing(tt.input))
		})
	}
}

func TestParseAgentsJSON(t *testing.T) {
	agents, err := ParseAgentsJSON(`[{"id":"main","workspace":"/w","model":"m","isDefault":true},{"id":"ops","identityName":"Ops"}]`)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, Agent{ID: "main", Name: "main", Workspace: "/w", Model: "m", IsDefault: true}, agents[0])
	assert.Equal(t, "Ops", agents[1].Name)

	wrapped, err := ParseAgentsJSON(`{"agents":[{"id":"x","default":true}]}`)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.True(t, wrapped[0].IsDefault)

	_, err = ParseAgentsJSON("- main\n")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "- main\n", perr.Raw)
}

func TestParseSessionsJSONAliasesKey(t *testing.T) {
	sessions, err := ParseSessionsJSON(`{"sessions":[{"key":"agent:main:1"}]}`)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "agent:main:1", sessions[0].Key)
	assert.Equal(t, "agent:main:1", sessions[0].SessionKey)
	assert.Equal(t, "main", sessions[0].AgentID())
	assert.Equal(t, sessions[0].Key, sessions[0].ChatID(), "key stands in for a missing session id")
}

func TestParseSessionsJSONAliasesSessionKey(t *testing.T) {
	sessions, err := ParseSessionsJSON(`[{"sessionKey":"agent:ops:abc","kind":"direct","model":"m","totalTokens":42,"updatedAt":1700000000000}]`)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, "agent:ops:abc", s.Key)
	assert.Equal(t, "agent:ops:abc", s.SessionKey)
	assert.Equal(t, "direct", s.Kind)
	assert.Equal(t, int64(42), s.TotalTokens)
	assert.Equal(t, int64(1700000000000), s.UpdatedTime().UnixMilli())
}

func TestParseSessionsJSONEmptyList(t *testing.T) {
	sessions, err := ParseSessionsJSON(`{"sessions":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestParseSessionsJSONInvalidCarriesRaw(t *testing.T) {
	raw := "Error: gateway unreachable"
	_, err := ParseSessionsJSON(raw)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, raw, perr.Raw)
	assert.Equal(t, "sessions", perr.Op)
	assert.Contains(t, err.Error(), "gateway unreachable")
}

func TestParseGatewayStatusText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		running bool
		pid     int
		port    int
	}{
		{"running with pid and port", "Gateway: running (pid 4242, port 18789)", true, 4242, 18789},
		{"service active", "Service: LaunchAgent (loaded)\nRuntime: active", true, 0, 0},
		{"not running", "Gateway: not running", false, 0, 0},
		{"stopped", "Runtime: stopped", false, 0, 0},
		{"inactive", "Runtime: inactive (dead)", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseGatewayStatus(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.running, st.Running)
			assert.Equal(t, tt.pid, st.PID)
			assert.Equal(t, tt.port, st.Port)
		})
	}
}

func TestParseGatewayStatusJSON(t *testing.T) {
	st, err := ParseGatewayStatus(`{"status":"running","pid":7,"version":"2026.1.5","uptime":"3h"}`)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, 7, st.PID)
	assert.Equal(t, "2026.1.5", st.Version)
	assert.Equal(t, "3h", st.Uptime)

	st, err = ParseGatewayStatus(`{"running":false,"status":"running"}`)
	require.NoError(t, err)
	assert.False(t, st.Running, "explicit running flag wins")

	_, err = ParseGatewayStatus(`{"running":`)
	assert.Error(t, err)

	_, err = ParseGatewayStatus("   ")
	assert.Error(t, err)
}

func TestParseGatewayStatusJSONNumericFields(t *testing.T) {
	st, err := ParseGatewayStatus(`{"running":true,"pid":42,"uptime":3600,"port":"18789","version":2}`)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, 42, st.PID)
	assert.Equal(t, 18789, st.Port)
	assert.Equal(t, "1h0m0s", st.Uptime)
	assert.Equal(t, "2", st.Version)

	st, err = ParseGatewayStatus(`{"status":"running","uptime":null,"pid":"n/a"}`)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Zero(t, st.PID)
	assert.Empty(t, st.Uptime)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "1h0m0s", FormatUptime("3600"))
	assert.Equal(t, "1m30s", FormatUptime("90.4"))
	assert.Equal(t, "3h", FormatUptime("3h"))
	assert.Equal(t, "", FormatUptime(""))
}

func TestParseMessageReply(t *testing.T) {
	reply, err := ParseMessageReply(`{"text":"hi","sessionId":"s1"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", reply.Text)
	assert.Equal(t, "s1", reply.SessionID)

	reply, err = ParseMessageReply(`{"result":{"payloads":[{"text":"a"},{"text":"b"}],"meta":{"agentMeta":{"sessionId":"s2","model":"m"}}}}`)
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", reply.Text)
	assert.Equal(t, "s2", reply.SessionID)
	assert.Equal(t, "m", reply.Model)

	_, err = ParseMessageReply("not json")
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

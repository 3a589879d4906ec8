package openclaw

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Agent is one configured agent as reported by `openclaw agents list`.
type Agent struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	IsDefault bool   `json:"isDefault" yaml:"isDefault"`
}

// Session is one session snapshot from `openclaw sessions --json` or a push event.
// Key and SessionKey always hold the same value after normalization.
type Session struct {
	Key           string `json:"key" yaml:"key"`
	SessionKey    string `json:"sessionKey" yaml:"sessionKey"`
	SessionID     string `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Kind          string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Model         string `json:"model,omitempty" yaml:"model,omitempty"`
	InputTokens   int64  `json:"inputTokens,omitempty" yaml:"inputTokens,omitempty"`
	OutputTokens  int64  `json:"outputTokens,omitempty" yaml:"outputTokens,omitempty"`
	TotalTokens   int64  `json:"totalTokens,omitempty" yaml:"totalTokens,omitempty"`
	ContextTokens int64  `json:"contextTokens,omitempty" yaml:"contextTokens,omitempty"`
	UpdatedAt     int64  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"` // unix millis
}

// AgentID extracts the agent id embedded in a composite key ("agent:<id>:<rest>").
func (s Session) AgentID() string {
	parts := strings.SplitN(s.Key, ":", 3)
	if len(parts) >= 2 && parts[0] == "agent" {
		return parts[1]
	}
	return ""
}

// ChatID is the value passed as `agent --session-id`: the session id when the
// snapshot carries one, else the key.
func (s Session) ChatID() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return s.Key
}

// UpdatedTime converts UpdatedAt to a time.Time (zero when unset).
func (s Session) UpdatedTime() time.Time {
	if s.UpdatedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.UpdatedAt)
}

// GatewayStatus is the parsed output of `openclaw gateway status`.
type GatewayStatus struct {
	Running bool   `json:"running" yaml:"running"`
	PID     int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Uptime  string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Raw     string `json:"raw,omitempty" yaml:"-"`
}

// AddAgentOptions are the arguments to `openclaw agents add`.
type AddAgentOptions struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace,omitempty"`
	Model     string `json:"model,omitempty"`
}

// MessageRequest are the arguments to `openclaw agent --message`.
type MessageRequest struct {
	Message   string `json:"message"`
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Thinking  string `json:"thinking,omitempty"` // off|minimal|low|medium|high
}

// MessageReply is the JSON reply of `openclaw agent ... --json`.
type MessageReply struct {
	Text       string `json:"text"`
	SessionID  string `json:"sessionId,omitempty"`
	SessionKey string `json:"sessionKey,omitempty"`
	Model      string `json:"model,omitempty"`
	Raw        string `json:"-"`
}

// ValidThinkingLevel reports whether level is accepted by --thinking.
func ValidThinkingLevel(level string) bool {
	switch level {
	case "", "off", "minimal", "low", "medium", "high":
		return true
	}
	return false
}

// LooseString is a cosmetic JSON field that may arrive as any scalar. Strings
// are kept, numbers and booleans keep their literal text, null is empty.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = LooseString(x)
	default:
		*s = LooseString(strings.TrimSpace(string(data)))
	}
	return nil
}

// LooseInt is a numeric JSON field that may arrive as a number or a numeric
// string. Anything else decodes to zero.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = LooseInt(x)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(x))
		*n = LooseInt(i)
	default:
		*n = 0
	}
	return nil
}

// FormatUptime renders an uptime reported as seconds ("3600", "12.5") as a
// duration; any other text is returned unchanged.
func FormatUptime(s string) string {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || secs < 0 {
		return s
	}
	return (time.Duration(secs * float64(time.Second))).Truncate(time.Second).String()
}

package openclaw

import (
	"bufio"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// defaultMarker is the suffix openclaw prints after the default agent's name.
const defaultMarker = "(default)"

// ParseAgentListing parses the indented text printed by `openclaw agents list`:
//
//	- main
//	  Workspace: ~/work
//	  Model: gpt-x
//	- head (default)
//	  Workspace: ~/head
//
// Every "- name" line starts a new record; "Key: value" lines fill the current
// record until the next marker. Unknown keys and lines before the first marker
// are ignored.
func ParseAgentListing(text string) []Agent {
	var agents []Agent
	var current *Agent

	flush := func() {
		if current != nil {
			if current.Name == "" {
				current.Name = current.ID
			}
			agents = append(agents, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(ansi.Strip(text)))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "- ") && !isIndented(line) {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "- "))
			isDefault := false
			if strings.HasSuffix(name, defaultMarker) {
				isDefault = true
				name = strings.TrimSpace(strings.TrimSuffix(name, defaultMarker))
			}
			current = &Agent{ID: name, IsDefault: isDefault}
			continue
		}

		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "workspace":
			current.Workspace = value
		case "model":
			current.Model = value
		case "name", "identity":
			current.Name = value
		}
	}
	flush()

	return agents
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// agentJSON accepts the field spellings seen across openclaw versions.
type agentJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Identity  string `json:"identityName"`
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	Default   bool   `json:"default"`
	IsDefault bool   `json:"isDefault"`
}

// ParseAgentsJSON parses `openclaw agents list --json`: either a bare array or
// an object with an "agents" array.
func ParseAgentsJSON(raw string) ([]Agent, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Op: "agents", Raw: raw, Err: errors.New("empty output")}
	}

	var records []agentJSON
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, &ParseError{Op: "agents", Raw: raw, Err: err}
		}
	} else {
		var wrapper struct {
			Agents []agentJSON `json:"agents"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil, &ParseError{Op: "agents", Raw: raw, Err: err}
		}
		records = wrapper.Agents
	}

	agents := make([]Agent, 0, len(records))
	for _, r := range records {
		a := Agent{
			ID:        r.ID,
			Name:      r.Name,
			Workspace: r.Workspace,
			Model:     r.Model,
			IsDefault: r.Default || r.IsDefault,
		}
		if a.Name == "" {
			a.Name = r.Identity
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// ParseSessionsJSON parses `openclaw sessions --json`: an object with a
// "sessions" array or a bare array. key and sessionKey are aliased so both
// fields carry the session key.
func ParseSessionsJSON(raw string) ([]Session, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Op: "sessions", Raw: raw, Err: errors.New("empty output")}
	}

	var sessions []Session
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &sessions); err != nil {
			return nil, &ParseError{Op: "sessions", Raw: raw, Err: err}
		}
	} else {
		var wrapper struct {
			Sessions []Session `json:"sessions"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil, &ParseError{Op: "sessions", Raw: raw, Err: err}
		}
		sessions = wrapper.Sessions
	}

	for i := range sessions {
		NormalizeSession(&sessions[i])
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// NormalizeSession makes Key and SessionKey refer to the same value.
func NormalizeSession(s *Session) {
	switch {
	case s.Key == "" && s.SessionKey != "":
		s.Key = s.SessionKey
	case s.SessionKey == "" && s.Key != "":
		s.SessionKey = s.Key
	}
}

var (
	notRunningPattern = regexp.MustCompile(`(?i)\b(not running|stopped|inactive|not active|not loaded|dead)\b`)
	runningPattern    = regexp.MustCompile(`(?i)\b(running|active)\b`)
	pidPattern        = regexp.MustCompile(`(?i)\bpid[:=\s]+(\d+)`)
	portPattern       = regexp.MustCompile(`(?i)\bport[:=\s]+(\d+)`)
	versionPattern    = regexp.MustCompile(`(?i)\bversion[:=\s]+v?([0-9][\w.\-+]*)`)
	uptimePattern     = regexp.MustCompile(`(?i)\buptime[:=\s]+([^\s,;)]+)`)
)

// ParseGatewayStatus parses `openclaw gateway status`. JSON output is used
// when present; otherwise the text is scanned for a running/stopped verdict.
func ParseGatewayStatus(raw string) (*GatewayStatus, error) {
	text := strings.TrimSpace(ansi.Strip(raw))
	if text == "" {
		return nil, &ParseError{Op: "gateway status", Raw: raw, Err: errors.New("empty output")}
	}

	if strings.HasPrefix(text, "{") {
		var doc struct {
			Running *bool       `json:"running"`
			Status  LooseString `json:"status"`
			PID     LooseInt    `json:"pid"`
			Port    LooseInt    `json:"port"`
			Uptime  LooseString `json:"uptime"`
			Version LooseString `json:"version"`
		}
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, &ParseError{Op: "gateway status", Raw: raw, Err: err}
		}
		st := &GatewayStatus{
			PID:     int(doc.PID),
			Port:    int(doc.Port),
			Uptime:  FormatUptime(string(doc.Uptime)),
			Version: string(doc.Version),
			Raw:     raw,
		}
		if doc.Running != nil {
			st.Running = *doc.Running
		} else {
			st.Running = IsRunningStatus(string(doc.Status))
		}
		return st, nil
	}

	st := &GatewayStatus{Raw: raw, Running: IsRunningStatus(text)}
	if m := pidPattern.FindStringSubmatch(text); m != nil {
		st.PID, _ = strconv.Atoi(m[1])
	}
	if m := portPattern.FindStringSubmatch(text); m != nil {
		st.Port, _ = strconv.Atoi(m[1])
	}
	if m := versionPattern.FindStringSubmatch(text); m != nil {
		st.Version = m[1]
	}
	if m := uptimePattern.FindStringSubmatch(text); m != nil {
		st.Uptime = m[1]
	}
	return st, nil
}

// IsRunningStatus reports whether a status word or sentence means running.
func IsRunningStatus(s string) bool {
	if notRunningPattern.MatchString(s) {
		return false
	}
	return runningPattern.MatchString(s) || strings.EqualFold(strings.TrimSpace(s), "ok")
}

// ParseMessageReply parses the JSON reply of `openclaw agent --json`. The reply
// text may sit at the top level or under payloads/result.
func ParseMessageReply(raw string) (*MessageReply, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Op: "agent reply", Raw: raw, Err: errors.New("empty output")}
	}

	var doc struct {
		Text       string `json:"text"`
		Reply      string `json:"reply"`
		SessionID  string `json:"sessionId"`
		SessionKey string `json:"sessionKey"`
		Model      string `json:"model"`
		Payloads   []struct {
			Text string `json:"text"`
		} `json:"payloads"`
		Result *struct {
			Payloads []struct {
				Text string `json:"text"`
			} `json:"payloads"`
			Meta struct {
				AgentMeta struct {
					SessionID string `json:"sessionId"`
					Model     string `json:"model"`
				} `json:"agentMeta"`
			} `json:"meta"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, &ParseError{Op: "agent reply", Raw: raw, Err: err}
	}

	reply := &MessageReply{
		Text:       doc.Text,
		SessionID:  doc.SessionID,
		SessionKey: doc.SessionKey,
		Model:      doc.Model,
		Raw:        raw,
	}
	if reply.Text == "" {
		reply.Text = doc.Reply
	}
	var texts []string
	for _, p := range doc.Payloads {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	if doc.Result != nil {
		for _, p := range doc.Result.Payloads {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		if reply.SessionID == "" {
			reply.SessionID = doc.Result.Meta.AgentMeta.SessionID
		}
		if reply.Model == "" {
			reply.Model = doc.Result.Meta.AgentMeta.Model
		}
	}
	if reply.Text == "" && len(texts) > 0 {
		reply.Text = strings.Join(texts, "\n\n")
	}
	return reply, nil
}

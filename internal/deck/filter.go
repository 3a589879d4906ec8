package deck

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

type agentSource []openclaw.Agent

func (a agentSource) String(i int) string {
	return a[i].ID + " " + a[i].Name + " " + a[i].Model
}

func (a agentSource) Len() int { return len(a) }

type sessionSource []openclaw.Session

func (s sessionSource) String(i int) string {
	return s[i].Key + " " + s[i].Kind + " " + s[i].Model
}

func (s sessionSource) Len() int { return len(s) }

// FilterAgents returns the agents fuzzily matching query, best match first.
// An empty query returns agents unchanged.
func FilterAgents(agents []openclaw.Agent, query string) []openclaw.Agent {
	query = strings.TrimSpace(query)
	if query == "" {
		return agents
	}
	matches := fuzzy.FindFrom(query, agentSource(agents))
	out := make([]openclaw.Agent, 0, len(matches))
	for _, m := range matches {
		out = append(out, agents[m.Index])
	}
	return out
}

// FilterSessions returns the sessions fuzzily matching query, best match first.
func FilterSessions(sessions []openclaw.Session, query string) []openclaw.Session {
	query = strings.TrimSpace(query)
	if query == "" {
		return sessions
	}
	matches := fuzzy.FindFrom(query, sessionSource(sessions))
	out := make([]openclaw.Session, 0, len(matches))
	for _, m := range matches {
		out = append(out, sessions[m.Index])
	}
	return out
}

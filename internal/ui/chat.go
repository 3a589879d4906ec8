package ui

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

var thinkingLevels = []string{"", "off", "minimal", "low", "medium", "high"}

func (a *App) transcriptKey() string {
	return deck.TranscriptKey(a.session, a.agent)
}

func (a *App) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return a, a.switchPage(PageMission)
	case "enter":
		return a, a.sendChat()
	case "ctrl+t":
		a.thinking = (a.thinking + 1) % len(thinkingLevels)
		return a, nil
	case "ctrl+a":
		a.cycleAgent()
		return a, nil
	case "pgup", "pgdown", "ctrl+up", "ctrl+down":
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// cycleAgent moves to the next known agent and starts a fresh session.
func (a *App) cycleAgent() {
	if a.snap == nil || len(a.snap.Agents) == 0 {
		return
	}
	next := 0
	for i, ag := range a.snap.Agents {
		if ag.ID == a.agent {
			next = (i + 1) % len(a.snap.Agents)
			break
		}
	}
	a.agent = a.snap.Agents[next].ID
	a.session = ""
	a.refreshTranscript()
}

// sendChat shows the message as pending right away and runs the CLI turn in
// the background.
func (a *App) sendChat() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}
	a.input.Reset()
	a.pending = append(a.pending, text)
	a.refreshTranscript()

	req := openclaw.MessageRequest{
		Message:   text,
		SessionID: a.session,
		Thinking:  thinkingLevels[a.thinking],
	}
	if a.session == "" {
		req.AgentID = a.agent
	}
	return func() tea.Msg {
		res, err := a.deck.SendChat(a.ctx, req)
		return chatResultMsg{text: text, res: res, err: err}
	}
}

func (a *App) dropPending(text string) {
	if i := slices.Index(a.pending, text); i >= 0 {
		a.pending = slices.Delete(a.pending, i, i+1)
	}
}

// refreshTranscript re-renders the transcript viewport from the deck.
func (a *App) refreshTranscript() {
	if a.transcript.Width <= 0 {
		return
	}
	entries := a.deck.Transcript().Entries(a.transcriptKey())
	width := max(10, a.transcript.Width-2)
	body := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	shown := make(map[string]bool)
	for _, e := range entries {
		if e.Role == deck.RoleUser && e.Status == deck.StatusPending {
			shown[e.Text] = true
		}
		b.WriteString(a.renderEntry(e, body))
		b.WriteString("\n")
	}
	for _, text := range a.pending {
		if shown[text] {
			continue
		}
		b.WriteString(a.renderEntry(deck.Entry{Role: deck.RoleUser, Text: text, Status: deck.StatusPending}, body))
		b.WriteString("\n")
	}
	if len(entries) == 0 && len(a.pending) == 0 {
		b.WriteString(a.styles.Dim.Render("No messages yet."))
	}

	a.transcript.SetContent(strings.TrimRight(b.String(), "\n"))
	a.transcript.GotoBottom()
}

func (a *App) renderEntry(e deck.Entry, body lipgloss.Style) string {
	st := a.styles
	var who string
	switch e.Role {
	case deck.RoleUser:
		who = st.User.Render("you")
	case deck.RoleAgent:
		name := e.Sender
		if name == "" {
			name = "agent"
		}
		who = st.Agent.Render(name)
	default:
		who = st.Dim.Render("system")
	}

	header := who
	if !e.At.IsZero() {
		header += st.Dim.Render(" " + e.At.Format("15:04:05"))
	}
	switch e.Status {
	case deck.StatusPending:
		header += " " + st.Pending.Render("sending…")
	case deck.StatusFailed:
		header += " " + st.Error.Render("failed")
	}

	text := body.Render(e.Text)
	if e.Status == deck.StatusPending {
		text = st.Pending.Render(text)
	}
	out := header + "\n" + text
	if e.Error != "" {
		out += "\n" + st.Error.Render(e.Error)
	}
	return out
}

func (a *App) renderChat() string {
	st := a.styles
	target := "agent " + a.agent + " (new session)"
	if a.session != "" {
		target = "session " + a.session
	}
	thinking := thinkingLevels[a.thinking]
	if thinking == "" {
		thinking = "default"
	}
	header := st.Dim.Render("To ") + target + st.Dim.Render(fmt.Sprintf("   thinking: %s", thinking))

	return strings.Join([]string{
		ansi.Truncate(header, a.width, "…"),
		a.transcript.View(),
		"",
		a.input.View(),
	}, "\n")
}

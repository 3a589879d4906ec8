package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// row is one line of the session list.
type row struct {
	key    string
	chatID string
	label  string
	agent  string
	model  string
	tokens int64
	level  int
	last   bool
	known  bool
}

// rebuildRows flattens the snapshot into rows. A filtered list is flat.
func (a *App) rebuildRows() {
	a.rows = a.rows[:0]
	if a.snap == nil {
		return
	}

	query := strings.TrimSpace(a.filter.Value())
	if query != "" {
		for _, s := range deck.FilterSessions(a.snap.Sessions, query) {
			a.rows = append(a.rows, sessionRow(s, "", 0, true))
		}
	} else {
		byKey := make(map[string]openclaw.Session, len(a.snap.Sessions))
		for _, s := range a.snap.Sessions {
			byKey[s.Key] = s
		}
		for i, node := range a.snap.Tree {
			s, known := byKey[node.ID]
			if !known {
				s = openclaw.Session{Key: node.ID}
			}
			r := sessionRow(s, node.Label, node.Level, known)
			r.last = lastSibling(a.snap.Tree[i:], node.Level)
			a.rows = append(a.rows, r)
		}
	}

	if a.cursor >= len(a.rows) {
		a.cursor = max(0, len(a.rows)-1)
	}
}

func sessionRow(s openclaw.Session, label string, level int, known bool) row {
	return row{
		key:    s.Key,
		chatID: s.ChatID(),
		label:  label,
		agent:  s.AgentID(),
		model:  s.Model,
		tokens: s.TotalTokens,
		level:  level,
		known:  known,
	}
}

// lastSibling reports whether tree[0] has no later sibling at level.
func lastSibling(tree []hierarchy.Node, level int) bool {
	for _, n := range tree[1:] {
		switch {
		case n.Level == level:
			return false
		case n.Level < level:
			return true
		}
	}
	return true
}

func (a *App) selectedRow() (row, bool) {
	if a.cursor < 0 || a.cursor >= len(a.rows) {
		return row{}, false
	}
	return a.rows[a.cursor], true
}

func (a *App) handleMissionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.rows)-1 {
			a.cursor++
		}
	case "home", "g":
		a.cursor = 0
	case "end", "G":
		a.cursor = max(0, len(a.rows)-1)
	case "/":
		a.filtering = true
		return a, a.filter.Focus()
	case "esc":
		if a.filter.Value() != "" {
			a.filter.Reset()
			a.rebuildRows()
		}
	case "r":
		return a, a.fetchSnapshot()
	case "enter":
		r, ok := a.selectedRow()
		if !ok {
			return a, nil
		}
		a.session = r.chatID
		if r.agent != "" {
			a.agent = r.agent
		}
		return a, a.switchPage(PageChat)
	}
	return a, nil
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.filtering = false
		a.filter.Blur()
		return a, nil
	case "esc":
		a.filtering = false
		a.filter.Blur()
		a.filter.Reset()
		a.rebuildRows()
		return a, nil
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.cursor = 0
	a.rebuildRows()
	return a, cmd
}

func (a *App) renderMission() string {
	var b strings.Builder
	st := a.styles

	if a.snap == nil {
		b.WriteString(st.Dim.Render("Fetching gateway, agents and sessions..."))
		return b.String()
	}

	// Gateway line
	b.WriteString(st.Dim.Render("Gateway  "))
	switch {
	case a.snap.Gateway != nil && a.snap.Gateway.Running:
		b.WriteString(st.StateStyle("connected").Render("running"))
	case a.snap.Gateway != nil:
		b.WriteString(st.Error.Render("stopped"))
	default:
		b.WriteString(st.Error.Render(firstLine(a.snap.GatewayError)))
	}
	if g := a.snap.Gateway; g != nil {
		if g.Version != "" {
			b.WriteString(st.Dim.Render("  v" + g.Version))
		}
		if g.Uptime != "" {
			b.WriteString(st.Dim.Render("  up " + g.Uptime))
		}
	}
	b.WriteString("\n")

	// Agents line
	agents := deck.FilterAgents(a.snap.Agents, a.filter.Value())
	b.WriteString(st.Dim.Render(fmt.Sprintf("Agents (%d)  ", len(agents))))
	if a.snap.AgentsError != "" {
		b.WriteString(st.Error.Render(firstLine(a.snap.AgentsError)))
	}
	names := make([]string, 0, len(agents))
	for _, ag := range agents {
		name := ag.ID
		if ag.IsDefault {
			name = st.Default.Render(name + "*")
		}
		if ag.Model != "" {
			name += st.Tag.Render(" [" + ag.Model + "]")
		}
		names = append(names, name)
	}
	b.WriteString(strings.Join(names, st.Dim.Render(" · ")))
	b.WriteString("\n")

	// Filter line
	if a.filtering || a.filter.Value() != "" {
		b.WriteString(a.filter.View())
		b.WriteString("\n")
	}

	b.WriteString(st.Dim.Render(fmt.Sprintf("Sessions (%d)", len(a.rows))))
	if a.snap.SessionsError != "" {
		b.WriteString("  " + st.Error.Render(firstLine(a.snap.SessionsError)))
	}
	b.WriteString("\n")

	if len(a.rows) == 0 {
		b.WriteString(st.Dim.Render("  no sessions"))
		return b.String()
	}

	used := strings.Count(b.String(), "\n")
	visible := max(1, a.bodyHeight()-used)
	a.syncOffset(visible)
	end := min(len(a.rows), a.offset+visible)
	for i := a.offset; i < end; i++ {
		b.WriteString(a.renderRow(a.rows[i], i == a.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *App) syncOffset(visible int) {
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	if a.cursor >= a.offset+visible {
		a.offset = a.cursor - visible + 1
	}
	if a.offset > max(0, len(a.rows)-visible) {
		a.offset = max(0, len(a.rows)-visible)
	}
}

func (a *App) renderRow(r row, selected bool) string {
	st := a.styles

	prefix := "  "
	if r.level > 0 {
		connector := "├─ "
		if r.last {
			connector = "└─ "
		}
		prefix += strings.Repeat("   ", r.level-1) + connector
	}

	name := r.key
	if r.label != "" {
		name = r.label + " (" + r.key + ")"
	}

	nameWidth := max(10, a.width/2-runewidth.StringWidth(prefix))
	name = runewidth.FillRight(runewidth.Truncate(name, nameWidth, "…"), nameWidth)

	var meta []string
	if r.agent != "" {
		meta = append(meta, r.agent)
	}
	if r.model != "" {
		meta = append(meta, r.model)
	}
	if r.tokens > 0 {
		meta = append(meta, formatTokens(r.tokens)+" tok")
	}
	if !r.known {
		meta = append(meta, "gone")
	}

	var line string
	if selected {
		line = st.Branch.Render(prefix) + st.Selected.Render(name)
	} else if !r.known {
		line = st.Branch.Render(prefix) + st.Dim.Render(name)
	} else {
		line = st.Branch.Render(prefix) + name
	}
	line += "  " + st.Tag.Render(strings.Join(meta, "  "))
	return ansi.Truncate(line, a.width, "…")
}

func formatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

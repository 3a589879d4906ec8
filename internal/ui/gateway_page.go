package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

const logLimit = 200

func (a *App) handleGatewayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	conn := a.deck.Connection()
	cli := a.deck.CLI()
	switch msg.String() {
	case "c":
		return a, a.runAction("connect", conn.Connect)
	case "R":
		return a, a.runAction("reconnect", conn.Reconnect)
	case "d":
		conn.Disconnect()
		a.diag = conn.Diagnostics()
		return a, nil
	case "s":
		return a, a.runAction("start", cli.GatewayStart)
	case "x":
		return a, a.runAction("stop", cli.GatewayStop)
	case "t":
		return a, a.runAction("restart", cli.GatewayRestart)
	case "l", "r":
		return a, tea.Batch(a.fetchGatewayStatus(), a.fetchLogs())
	case "esc":
		return a, a.switchPage(PageMission)
	}
	var cmd tea.Cmd
	a.logs, cmd = a.logs.Update(msg)
	return a, cmd
}

func (a *App) runAction(name string, fn func(context.Context) error) tea.Cmd {
	a.setInfo(name + "...")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, fetchTimeout)
		defer cancel()
		return actionDoneMsg{action: name, err: fn(ctx)}
	}
}

func (a *App) fetchGatewayStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, fetchTimeout)
		defer cancel()
		status, err := a.deck.CLI().GatewayStatus(ctx)
		return gatewayStatusMsg{status: status, err: err}
	}
}

func (a *App) fetchLogs() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, fetchTimeout)
		defer cancel()
		text, err := a.deck.CLI().GatewayLogs(ctx, logLimit)
		return logsMsg{text: strings.TrimRight(text, "\n"), err: err}
	}
}

func (a *App) renderGateway() string {
	st := a.styles
	d := a.diag
	var lines []string

	conn := st.Dim.Render("Connection  ") + st.StateStyle(string(d.State)).Render(string(d.State))
	if d.Bridge != "" {
		conn += st.Dim.Render("  via " + d.Bridge)
	}
	conn += st.Dim.Render(fmt.Sprintf("  attempts %d/%d", d.ReconnectAttempts, d.MaxAttempts))
	lines = append(lines, conn)

	var when []string
	if !d.LastConnected.IsZero() {
		when = append(when, "last connected "+d.LastConnected.Format(time.TimeOnly))
	}
	if !d.LastDisconnect.IsZero() {
		when = append(when, "last disconnect "+d.LastDisconnect.Format(time.TimeOnly))
	}
	if len(when) > 0 {
		lines = append(lines, st.Dim.Render("            "+strings.Join(when, "  ")))
	}
	if d.LastError != "" {
		lines = append(lines, "            "+st.Error.Render(d.LastError))
	}

	service := st.Dim.Render("Service     ")
	switch {
	case a.status != nil && a.status.Running:
		service += st.StateStyle("connected").Render("running")
	case a.status != nil:
		service += st.Error.Render("stopped")
	case a.statusErr != "":
		service += st.Error.Render(firstLine(a.statusErr))
	default:
		service += st.Dim.Render("unknown")
	}
	if s := a.status; s != nil {
		if s.PID > 0 {
			service += st.Dim.Render(fmt.Sprintf("  pid %d", s.PID))
		}
		if s.Port > 0 {
			service += st.Dim.Render(fmt.Sprintf("  port %d", s.Port))
		}
		if s.Version != "" {
			service += st.Dim.Render("  v" + s.Version)
		}
	}
	lines = append(lines, service)

	socket := st.Dim.Render("Push socket ")
	settings := a.deck.GatewaySettings()
	switch {
	case settings.URL == "":
		socket += st.Dim.Render("not configured (set it from the web dashboard)")
	case a.deck.Socket().Connected():
		socket += st.StateStyle("connected").Render(settings.URL)
	default:
		socket += settings.URL + st.Dim.Render("  idle")
	}
	lines = append(lines, socket, "")

	lines = append(lines, st.Dim.Render(fmt.Sprintf("Logs (last %d lines)", logLimit)))
	for i := range lines {
		lines[i] = ansi.Truncate(lines[i], a.width, "…")
	}
	if !a.logsLoaded {
		lines = append(lines, st.Dim.Render("loading..."))
	} else {
		lines = append(lines, a.logs.View())
	}
	return strings.Join(lines, "\n")
}

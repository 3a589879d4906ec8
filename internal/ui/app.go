// Package ui is the terminal dashboard: the Mission Control, Chat and Gateway
// pages rendered with Bubble Tea over a deck.Deck.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// Page identifies one of the dashboard pages.
type Page int

const (
	PageMission Page = iota
	PageChat
	PageGateway
)

var pageTitles = []string{"Mission Control", "Chat", "Gateway"}

func (p Page) String() string { return pageTitles[p] }

const (
	fetchTimeout = 30 * time.Second
	eventBuffer  = 64
	errorTTL     = 8 * time.Second

	// Minimum terminal size
	minWidth  = 40
	minHeight = 12
)

// Options configures an App.
type Options struct {
	Theme   string // "dark", "light" or "auto"
	Version string
}

// App is the root Bubble Tea model.
type App struct {
	ctx     context.Context
	deck    *deck.Deck
	styles  Styles
	version string

	width  int
	height int
	page   Page

	// Mission Control
	snap      *deck.Snapshot
	rows      []row
	cursor    int
	offset    int
	filter    textinput.Model
	filtering bool
	loading   bool
	spinner   spinner.Model

	// Chat
	agent      string
	session    string
	thinking   int
	input      textinput.Model
	transcript viewport.Model
	pending    []string

	// Gateway
	diag       gateway.Diagnostics
	status     *openclaw.GatewayStatus
	statusErr  string
	logs       viewport.Model
	logsLoaded bool

	events chan tea.Msg
	done   chan struct{}
	unsub  []func()

	flash   string
	flashAt time.Time
	isError bool
}

type snapshotMsg struct{ snap *deck.Snapshot }

type missionTickMsg time.Time

type chatTickMsg time.Time

type connEventMsg struct{ ev gateway.Event }

type socketEventMsg struct{ msg gateway.Message }

type chatResultMsg struct {
	text string
	res  *deck.ChatResult
	err  error
}

type actionDoneMsg struct {
	action string
	err    error
}

type gatewayStatusMsg struct {
	status *openclaw.GatewayStatus
	err    error
}

type logsMsg struct {
	text string
	err  error
}

// NewApp builds the model and subscribes to the deck's connection and socket
// events. Call Close when the program exits.
func NewApp(ctx context.Context, d *deck.Deck, opts Options) *App {
	if ctx == nil {
		ctx = context.Background()
	}
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter agents and sessions"
	filter.CharLimit = 64

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "message the agent (enter to send)"
	input.CharLimit = 4000

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	a := &App{
		ctx:        ctx,
		deck:       d,
		styles:     NewStyles(ResolveTheme(opts.Theme)),
		version:    opts.Version,
		filter:     filter,
		input:      input,
		spinner:    sp,
		agent:      "main",
		transcript: viewport.New(0, 0),
		logs:       viewport.New(0, 0),
		events:     make(chan tea.Msg, eventBuffer),
		done:       make(chan struct{}),
		diag:       d.Connection().Diagnostics(),
	}
	a.spinner.Style = a.styles.Dim

	connSub := d.Connection().Subscribe(func(ev gateway.Event) { a.offer(connEventMsg{ev: ev}) })
	sockSub := d.Socket().Subscribe(func(m gateway.Message) { a.offer(socketEventMsg{msg: m}) })
	a.unsub = []func(){
		func() { d.Connection().Unsubscribe(connSub) },
		func() { d.Socket().Unsubscribe(sockSub) },
	}
	return a
}

// Close drops the event subscriptions.
func (a *App) Close() {
	select {
	case <-a.done:
		return
	default:
	}
	close(a.done)
	for _, fn := range a.unsub {
		fn()
	}
}

// Page returns the current page.
func (a *App) Page() Page { return a.page }

func (a *App) offer(msg tea.Msg) {
	select {
	case a.events <- msg:
	default:
	}
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-a.events:
			return msg
		case <-a.done:
			return nil
		}
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchSnapshot(),
		a.missionTick(),
		a.chatTick(),
		a.waitForEvent(),
	)
}

func (a *App) missionTick() tea.Cmd {
	return tea.Tick(a.deck.Config().Polling.MissionControl.Duration, func(t time.Time) tea.Msg {
		return missionTickMsg(t)
	})
}

func (a *App) chatTick() tea.Cmd {
	return tea.Tick(a.deck.Config().Polling.ChatSessions.Duration, func(t time.Time) tea.Msg {
		return chatTickMsg(t)
	})
}

func (a *App) fetchSnapshot() tea.Cmd {
	a.loading = true
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, fetchTimeout)
		defer cancel()
		return snapshotMsg{snap: a.deck.Snapshot(ctx)}
	}
	return tea.Batch(fetch, a.spinner.Tick)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case snapshotMsg:
		a.loading = false
		a.snap = msg.snap
		a.diag = msg.snap.Connection
		a.rebuildRows()
		a.refreshTranscript()
		return a, nil

	case missionTickMsg:
		if a.page == PageMission {
			return a, tea.Batch(a.fetchSnapshot(), a.missionTick())
		}
		return a, a.missionTick()

	case chatTickMsg:
		if a.page == PageChat {
			return a, tea.Batch(a.fetchSnapshot(), a.chatTick())
		}
		return a, a.chatTick()

	case connEventMsg:
		a.diag = a.deck.Connection().Diagnostics()
		if msg.ev.Kind == gateway.EventError && msg.ev.Terminal {
			a.setError(msg.ev.ErrorMessage())
		}
		return a, a.waitForEvent()

	case socketEventMsg:
		cmds := []tea.Cmd{a.waitForEvent()}
		switch msg.msg.Type {
		case gateway.MessageChat:
			a.refreshTranscript()
		case gateway.MessageSpawn:
			cmds = append(cmds, a.fetchSnapshot())
		}
		return a, tea.Batch(cmds...)

	case chatResultMsg:
		a.dropPending(msg.text)
		switch {
		case msg.err != nil:
			a.setError(msg.err.Error())
		case msg.res != nil && msg.res.Reply == nil:
			a.setInfo("sent; the agent returned no text")
		}
		a.refreshTranscript()
		return a, nil

	case actionDoneMsg:
		a.diag = a.deck.Connection().Diagnostics()
		if msg.err != nil {
			a.setError(msg.action + ": " + msg.err.Error())
			return a, nil
		}
		a.setInfo(msg.action + " ok")
		switch msg.action {
		case "start", "stop", "restart":
			return a, a.fetchGatewayStatus()
		}
		return a, nil

	case gatewayStatusMsg:
		a.status = msg.status
		a.statusErr = ""
		if msg.err != nil {
			a.statusErr = msg.err.Error()
		}
		return a, nil

	case logsMsg:
		a.logsLoaded = true
		if msg.err != nil {
			a.logs.SetContent(a.styles.Error.Render(msg.err.Error()))
			return a, nil
		}
		a.logs.SetContent(msg.text)
		a.logs.GotoBottom()
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		return a, a.switchPage((a.page + 1) % Page(len(pageTitles)))
	case "shift+tab":
		return a, a.switchPage((a.page + Page(len(pageTitles)) - 1) % Page(len(pageTitles)))
	}

	switch a.page {
	case PageChat:
		return a.handleChatKey(msg)
	case PageGateway:
		if cmd, ok := a.handleGlobalKey(msg); ok {
			return a, cmd
		}
		return a.handleGatewayKey(msg)
	default:
		if a.filtering {
			return a.handleFilterKey(msg)
		}
		if cmd, ok := a.handleGlobalKey(msg); ok {
			return a, cmd
		}
		return a.handleMissionKey(msg)
	}
}

// handleGlobalKey handles keys shared by the pages that do not own a text
// input. It reports whether msg was consumed.
func (a *App) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return tea.Quit, true
	case "1":
		return a.switchPage(PageMission), true
	case "2":
		return a.switchPage(PageChat), true
	case "3":
		return a.switchPage(PageGateway), true
	}
	return nil, false
}

func (a *App) switchPage(p Page) tea.Cmd {
	a.page = p
	a.input.Blur()
	switch p {
	case PageChat:
		a.refreshTranscript()
		return tea.Batch(a.input.Focus(), a.fetchSnapshot())
	case PageGateway:
		a.diag = a.deck.Connection().Diagnostics()
		return tea.Batch(a.fetchGatewayStatus(), a.fetchLogs())
	default:
		return a.fetchSnapshot()
	}
}

func (a *App) setError(msg string) {
	a.flash = msg
	a.flashAt = time.Now()
	a.isError = true
}

func (a *App) setInfo(msg string) {
	a.flash = msg
	a.flashAt = time.Now()
	a.isError = false
}

func (a *App) updateSizes() {
	bodyHeight := a.bodyHeight()
	a.filter.Width = max(10, a.width-6)
	a.input.Width = max(10, a.width-6)
	a.transcript.Width = a.width
	a.transcript.Height = max(1, bodyHeight-3)
	a.logs.Width = a.width
	a.logs.Height = max(1, bodyHeight-7)
	a.refreshTranscript()
}

// bodyHeight is what is left after the header, help bar and status line.
func (a *App) bodyHeight() int {
	return max(1, a.height-4)
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}
	if a.width < minWidth || a.height < minHeight {
		return a.styles.Dim.Render("Terminal too small")
	}

	var body string
	switch a.page {
	case PageChat:
		body = a.renderChat()
	case PageGateway:
		body = a.renderGateway()
	default:
		body = a.renderMission()
	}
	body = fitHeight(body, a.bodyHeight())

	return strings.Join([]string{
		a.renderHeader(),
		body,
		a.renderStatusLine(),
		a.renderHelpBar(),
	}, "\n")
}

func (a *App) renderHeader() string {
	left := a.styles.Title.Render("Claw Deck")
	if a.version != "" {
		left += a.styles.Dim.Render(" v" + a.version)
	}
	left += "  "
	for i, title := range pageTitles {
		if Page(i) == a.page {
			left += a.styles.TabActive.Render(title)
		} else {
			left += a.styles.Tab.Render(title)
		}
	}

	state := string(a.diag.State)
	right := a.styles.StateStyle(state).Render("● " + state)
	if a.loading {
		right = a.spinner.View() + " " + right
	}

	padding := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		return ansi.Truncate(left+" "+right, a.width, "…")
	}
	return left + strings.Repeat(" ", padding) + right
}

func (a *App) renderStatusLine() string {
	if a.flash == "" || time.Since(a.flashAt) > errorTTL {
		return ""
	}
	style := a.styles.Dim
	if a.isError {
		style = a.styles.Error
	}
	return ansi.Truncate(style.Render(a.flash), a.width, "…")
}

func (a *App) renderHelpBar() string {
	var sections []string
	switch a.page {
	case PageMission:
		sections = append(sections,
			a.styles.MenuKey("↑↓", "Nav"),
			a.styles.MenuKey("Enter", "Chat"),
			a.styles.MenuKey("/", "Filter"),
			a.styles.MenuKey("r", "Refresh"),
		)
	case PageChat:
		sections = append(sections,
			a.styles.MenuKey("Enter", "Send"),
			a.styles.MenuKey("^A", "Agent"),
			a.styles.MenuKey("^T", "Thinking"),
			a.styles.MenuKey("PgUp/PgDn", "Scroll"),
			a.styles.MenuKey("Esc", "Back"),
		)
	case PageGateway:
		sections = append(sections,
			a.styles.MenuKey("c", "Connect"),
			a.styles.MenuKey("d", "Disconnect"),
			a.styles.MenuKey("R", "Reconnect"),
			a.styles.MenuKey("s/x/t", "Start/Stop/Restart"),
			a.styles.MenuKey("l", "Logs"),
		)
	}
	sections = append(sections, a.styles.MenuKey("Tab", "Page"))
	if a.page != PageChat {
		sections = append(sections, a.styles.MenuKey("q", "Quit"))
	}
	content := ansi.Truncate(strings.Join(sections, "  "), max(1, a.width-2), "…")
	return a.styles.HelpBar.Width(a.width).Render(content)
}

// fitHeight pads or cuts s to exactly n lines.
func fitHeight(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

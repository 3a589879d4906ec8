// Package deck wires the dashboard together. A Deck is the one handle every
// page receives: it owns the openclaw client, the gateway connection, the push
// socket, local storage and the chat transcript.
package deck

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/openclaw/claw-deck/internal/config"
	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/hierarchy"
	"github.com/openclaw/claw-deck/internal/localstore"
	"github.com/openclaw/claw-deck/internal/logging"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// SettingsKey is the local-storage key for the gateway URL and API key.
const SettingsKey = "clawdeck.gatewayConfig"

// ErrRateLimited is returned by SendChat when messages arrive too fast.
var ErrRateLimited = errors.New("chat messages are being sent too quickly")

const (
	chatInterval = 500 * time.Millisecond
	chatBurst    = 3
)

// Options overrides the pieces Open would otherwise build from the config.
type Options struct {
	Executor openclaw.Executor // nil: a Runner for cfg.OpenClaw.Binary
	Store    *localstore.Store // nil: open cfg.StorePath(); the Deck then owns it
	Clock    gateway.Clock     // nil: wall clock
	Logger   *slog.Logger
}

// Deck is the dashboard handle.
type Deck struct {
	logger     *slog.Logger
	exec       openclaw.Executor
	cli        *openclaw.Client
	store      *localstore.Store
	ownsStore  bool
	hierarchy  *hierarchy.Store
	socket     *gateway.PushSocket
	conn       *gateway.Client
	transcript *Transcript
	limiter    *rate.Limiter

	socketSub gateway.Subscription

	mu  sync.RWMutex
	cfg *config.Config

	closeOnce sync.Once
}

// Open builds a Deck. The gateway connection is not started; call
// Connection().Connect when a page wants it.
func Open(cfg *config.Config, opts Options) (*Deck, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := opts.Executor
	if runner == nil {
		runner = openclaw.NewRunner(cfg.OpenClaw.Binary, cfg.OpenClaw.Timeout.Duration, logging.Component(logger, "runner"))
	}

	store := opts.Store
	ownsStore := false
	if store == nil {
		var err error
		store, err = localstore.Open(cfg.StorePath())
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		ownsStore = true
	}

	d := &Deck{
		logger:     logger,
		exec:       runner,
		cli:        openclaw.NewClient(runner, logging.Component(logger, "openclaw")),
		store:      store,
		ownsStore:  ownsStore,
		hierarchy:  hierarchy.Open(store, logging.Component(logger, "hierarchy")),
		transcript: NewTranscript(0),
		limiter:    rate.NewLimiter(rate.Every(chatInterval), chatBurst),
		cfg:        cfg,
	}

	settings := d.loadSettings()
	d.socket = gateway.NewPushSocket(gateway.SocketConfig{URL: settings.URL, APIKey: settings.APIKey},
		logging.Component(logger, "socket"))
	d.socketSub = d.socket.Subscribe(d.handleSocketMessage)

	bridge := &gateway.PreferredBridge{
		Primary:  d.socket,
		Fallback: gateway.NewCLIBridge(d.cli, d.binaryAvailable),
	}
	d.conn = gateway.NewClient(gateway.Options{
		Bridge: bridge,
		Clock:  opts.Clock,
		Logger: logging.Component(logger, "gateway"),
	})
	return d, nil
}

// Close tears the Deck down in reverse order of construction.
func (d *Deck) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.socket.Unsubscribe(d.socketSub)
		err = d.conn.Close()
		if cerr := d.socket.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if d.ownsStore {
			if cerr := d.store.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (d *Deck) CLI() *openclaw.Client { return d.cli }
func (d *Deck) Connection() *gateway.Client { return d.conn }
func (d *Deck) Socket() *gateway.PushSocket { return d.socket }
func (d *Deck) Hierarchy() *hierarchy.Store { return d.hierarchy }
func (d *Deck) Transcript() *Transcript { return d.transcript }
func (d *Deck) Logger() *slog.Logger { return d.logger }
func (d *Deck) Store() *localstore.Store { return d.store }
func (d *Deck) Executor() openclaw.Executor { return d.exec }

// Config returns the active configuration.
func (d *Deck) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ApplyConfig swaps in a reloaded configuration. Poll intervals and the log
// level take effect immediately; the binary path and listen address need a
// restart.
func (d *Deck) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	logging.SetLevel(cfg.Log.Level)
	d.logger.Info("configuration reloaded",
		"mission_poll", cfg.Polling.MissionControl.Duration,
		"chat_poll", cfg.Polling.ChatSessions.Duration)
}

// binaryAvailable reports whether the openclaw binary can be found.
func (d *Deck) binaryAvailable() error {
	if lp, ok := d.exec.(interface{ LookPath() (string, error) }); ok {
		_, err := lp.LookPath()
		return err
	}
	if _, err := exec.LookPath(d.exec.Binary()); err != nil {
		return fmt.Errorf("openclaw binary %q not found: %w", d.exec.Binary(), err)
	}
	return nil
}

// handleSocketMessage routes push-socket traffic: spawns feed the hierarchy,
// chat messages feed the transcript.
func (d *Deck) handleSocketMessage(m gateway.Message) {
	switch m.Type {
	case gateway.MessageSpawn:
		child := m.SessionID
		if err := d.hierarchy.AddSpawn(m.ParentID, child, m.Label); err != nil {
			d.logger.Warn("ignoring spawn event", "error", err)
		}
	case gateway.MessageChat:
		if strings.TrimSpace(m.Text) == "" {
			return
		}
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		role := RoleAgent
		if m.Sender == string(RoleUser) {
			role = RoleUser
		}
		d.transcript.Append(Entry{
			ID:         id,
			SessionKey: TranscriptKey(m.SessionID, m.AgentID),
			Role:       role,
			Sender:     m.Sender,
			Text:       m.Text,
			Status:     StatusReceived,
			At:         time.Now(),
		})
	default:
		d.logger.Debug("socket message", "type", string(m.Type), "session", m.SessionID)
	}
}

// TranscriptKey returns the transcript bucket for a chat addressed to session (or,
// without one, to agent's default session).
func TranscriptKey(session, agent string) string {
	if session != "" {
		return session
	}
	if agent == "" {
		agent = "main"
	}
	return "agent:" + agent
}

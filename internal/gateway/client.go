// Package gateway keeps the dashboard connected to the openclaw gateway.
//
// Client owns the connection state machine:
//
//	disconnected -> connecting -> connected
//	connecting -> error -> reconnecting -> connecting ...
//	connected -> (heartbeat miss) -> disconnected -> reconnecting
//	any -> disconnecting -> disconnected
//
// Failed probes are retried with exponential backoff until MaxAttempts is
// reached; the client then settles in disconnected until Connect or Reconnect
// is called. A manual Disconnect suppresses automatic reconnects.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

// State is the connection state.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateReconnecting  State = "reconnecting"
	StateDisconnecting State = "disconnecting"
	StateError         State = "error"
)

var (
	// ErrBridgeUnavailable means the probe mechanism cannot be used.
	ErrBridgeUnavailable = errors.New("gateway bridge unavailable")
	// ErrNotRunning means the probe succeeded but the gateway is not running.
	ErrNotRunning = errors.New("gateway is not running")
	// ErrMaxAttempts is wrapped by the terminal error once retries are exhausted.
	ErrMaxAttempts = errors.New("gateway reconnect attempts exhausted")
	// ErrSuperseded is returned by a Connect whose result arrived after a
	// later Connect or Disconnect.
	ErrSuperseded = errors.New("gateway connect superseded")
)

const defaultProbeTimeout = 15 * time.Second

// Options configures a Client. Zero values use the defaults.
type Options struct {
	Bridge            Bridge
	MaxAttempts       int
	Backoff           Backoff
	HeartbeatInterval time.Duration
	ProbeTimeout      time.Duration
	Clock             Clock
	Logger            *slog.Logger
}

// Diagnostics is a read-only snapshot of the client's state.
type Diagnostics struct {
	State             State                   `json:"state"`
	Bridge            string                  `json:"bridge"`
	LastError         string                  `json:"lastError,omitempty"`
	LastDisconnect    time.Time               `json:"lastDisconnect,omitempty"`
	LastConnected     time.Time               `json:"lastConnected,omitempty"`
	ReconnectAttempts int                     `json:"reconnectAttempts"`
	MaxAttempts       int                     `json:"maxAttempts"`
	Status            *openclaw.GatewayStatus `json:"status,omitempty"`
}

// Client supervises the gateway connection.
type Client struct {
	bridge       Bridge
	maxAttempts  int
	backoff      Backoff
	heartbeat    time.Duration
	probeTimeout time.Duration
	clock        Clock
	logger       *slog.Logger
	observers    *Observers[Event]

	baseCtx context.Context
	cancel  context.CancelFunc

	mu               sync.Mutex
	state            State
	lastErr          error
	lastDisconnect   time.Time
	lastConnected    time.Time
	attempts         int
	manualDisconnect bool
	lastStatus       *openclaw.GatewayStatus

	// gen increments on every Connect and Disconnect; probe results carrying
	// an older generation are discarded.
	gen uint64

	heartbeatTimer Timer
	heartbeatSeq   uint64
	reconnectTimer Timer
	reconnectSeq   uint64
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff.Base <= 0 && opts.Backoff.Max <= 0 && opts.Backoff.Jitter == 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeat
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		bridge:       opts.Bridge,
		maxAttempts:  opts.MaxAttempts,
		backoff:      opts.Backoff,
		heartbeat:    opts.HeartbeatInterval,
		probeTimeout: opts.ProbeTimeout,
		clock:        opts.Clock,
		logger:       opts.Logger,
		observers:    NewObservers[Event](opts.Logger),
		baseCtx:      ctx,
		cancel:       cancel,
		state:        StateDisconnected,
	}
}

// Subscribe registers fn for connection events.
func (c *Client) Subscribe(fn func(Event)) Subscription {
	return c.observers.Subscribe(fn)
}

// Unsubscribe removes a listener; repeated calls are harmless.
func (c *Client) Unsubscribe(id Subscription) {
	c.observers.Unsubscribe(id)
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Diagnostics returns a snapshot of the connection state.
func (c *Client) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Diagnostics{
		State:             c.state,
		LastDisconnect:    c.lastDisconnect,
		LastConnected:     c.lastConnected,
		ReconnectAttempts: c.attempts,
		MaxAttempts:       c.maxAttempts,
	}
	if c.bridge != nil {
		d.Bridge = c.bridge.Name()
	}
	if c.lastErr != nil {
		d.LastError = c.lastErr.Error()
	}
	if c.lastStatus != nil {
		st := *c.lastStatus
		d.Status = &st
	}
	return d
}

// Connect probes the gateway. On failure the reconnect procedure takes over
// unless the user disconnected. An explicit Connect clears a previous manual
// disconnect.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, true)
}

// Reconnect resets the attempt counter and error, then connects.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.attempts = 0
	c.lastErr = nil
	c.manualDisconnect = false
	c.mu.Unlock()
	return c.connect(ctx, true)
}

// Disconnect stops the heartbeat and any pending reconnect and moves to
// disconnected. When already disconnected it emits nothing, but still cancels
// a reconnect that a failed heartbeat is about to schedule.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualDisconnect = true
	c.gen++
	c.stopHeartbeatLocked()
	c.stopReconnectTimerLocked()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting
	c.mu.Unlock()
	c.emit(Event{Kind: EventDisconnecting})

	if closer, ok := c.bridge.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("close gateway bridge", "bridge", c.bridge.Name(), "error", err)
		}
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.lastDisconnect = c.clock.Now()
	c.mu.Unlock()
	c.emit(Event{Kind: EventDisconnected})
	c.logger.Info("gateway disconnected by user")
}

// Close disconnects and releases the client; timer callbacks that are already
// running see a cancelled context.
func (c *Client) Close() error {
	c.Disconnect()
	c.cancel()
	return nil
}

func (c *Client) connect(ctx context.Context, explicit bool) error {
	c.mu.Lock()
	c.stopReconnectTimerLocked()
	if explicit {
		c.manualDisconnect = false
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()
	c.emit(Event{Kind: EventConnecting})

	if c.bridge == nil {
		return c.fail(gen, ErrBridgeUnavailable)
	}
	if err := c.bridge.Available(); err != nil {
		return c.fail(gen, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err))
	}

	status, err := c.probe(ctx)
	if err != nil {
		return c.fail(gen, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded connect result")
		return ErrSuperseded
	}
	c.state = StateConnected
	c.attempts = 0
	c.lastErr = nil
	c.lastStatus = status
	c.lastConnected = c.clock.Now()
	c.startHeartbeatLocked()
	c.mu.Unlock()

	c.logger.Info("gateway connected", "bridge", c.bridge.Name(), "version", status.Version)
	c.emit(Event{Kind: EventConnected})
	return nil
}

func (c *Client) probe(ctx context.Context) (*openclaw.GatewayStatus, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	status, err := c.bridge.Probe(probeCtx)
	if err != nil {
		return nil, err
	}
	if status == nil || !status.Running {
		return status, ErrNotRunning
	}
	return status, nil
}

// fail records a connect failure for generation gen and starts the
// reconnect procedure.
func (c *Client) fail(gen uint64, err error) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.state = StateError
	c.lastErr = err
	c.lastDisconnect = c.clock.Now()
	manual := c.manualDisconnect
	c.mu.Unlock()

	c.logger.Warn("gateway connect failed", "error", err)
	c.emit(Event{Kind: EventError, Err: err})

	if !manual {
		c.scheduleReconnect(gen)
	}
	return err
}

// scheduleReconnect runs the reconnect procedure: give up after maxAttempts,
// otherwise wait out the backoff delay and connect again.
func (c *Client) scheduleReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.manualDisconnect {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.maxAttempts {
		c.stopReconnectTimerLocked()
		c.state = StateDisconnected
		terminal := fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, c.attempts, c.lastErr)
		c.lastErr = terminal
		c.mu.Unlock()

		c.logger.Error("gateway unreachable, giving up", "attempts", c.maxAttempts)
		c.emit(Event{Kind: EventError, Err: terminal, Terminal: true})
		return
	}

	delay := c.backoff.Delay(c.attempts)
	c.attempts++
	attempt := c.attempts
	c.state = StateReconnecting
	c.stopReconnectTimerLocked()
	seq := c.reconnectSeq
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.fireReconnect(seq) })
	c.mu.Unlock()

	c.logger.Info("gateway reconnect scheduled", "attempt", attempt, "delay", delay)
	c.emit(Event{Kind: EventReconnecting, Attempt: attempt, Delay: delay, MaxAttempts: c.maxAttempts})
}

func (c *Client) fireReconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.reconnectSeq || c.manualDisconnect {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	_ = c.connect(c.baseCtx, false)
}

func (c *Client) startHeartbeatLocked() {
	c.stopHeartbeatLocked()
	seq := c.heartbeatSeq
	c.heartbeatTimer = c.clock.AfterFunc(c.heartbeat, func() { c.beat(seq) })
}

func (c *Client) beat(seq uint64) {
	c.mu.Lock()
	if seq != c.heartbeatSeq || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()

	status, err := c.probe(c.baseCtx)

	c.mu.Lock()
	if seq != c.heartbeatSeq || gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.lastStatus = status
		c.heartbeatTimer = c.clock.AfterFunc(c.heartbeat, func() { c.beat(seq) })
		c.mu.Unlock()
		return
	}

	c.lastErr = err
	c.state = StateDisconnected
	c.lastDisconnect = c.clock.Now()
	if status != nil {
		c.lastStatus = status
	}
	c.stopHeartbeatLocked()
	manual := c.manualDisconnect
	c.mu.Unlock()

	c.logger.Warn("gateway heartbeat failed", "error", err)
	c.emit(Event{Kind: EventDisconnected, Err: err})
	if !manual {
		c.scheduleReconnect(gen)
	}
}

// stopHeartbeatLocked cancels the heartbeat; bumping the sequence retires
// any callback that already fired.
func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatTimer != nil {
		c.heartbeatTimer.Stop()
		c.heartbeatTimer = nil
	}
	c.heartbeatSeq++
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectSeq++
}

func (c *Client) emit(ev Event) {
	if ev.State == "" {
		ev.State = stateForEvent(ev)
	}
	if ev.At.IsZero() {
		ev.At = c.clock.Now()
	}
	c.observers.Emit(ev)
}

// stateForEvent is the state the client was in when ev was raised.
func stateForEvent(ev Event) State {
	switch ev.Kind {
	case EventConnecting:
		return StateConnecting
	case EventConnected:
		return StateConnected
	case EventDisconnecting:
		return StateDisconnecting
	case EventReconnecting:
		return StateReconnecting
	case EventError:
		if ev.Terminal {
			return StateDisconnected
		}
		return StateError
	default:
		return StateDisconnected
	}
}

package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualClock fires timers only when Advance moves time past them.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

// Pending returns the number of armed timers.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// scriptedBridge answers probes from a queue, repeating the last entry.
type scriptedBridge struct {
	mu       sync.Mutex
	replies  []probeReply
	probes   int
	closed   int
	unusable error
}

type probeReply struct {
	status *openclaw.GatewayStatus
	err    error
}

var (
	up   = probeReply{status: &openclaw.GatewayStatus{Running: true, Version: "1.0"}}
	down = probeReply{err: errors.New("connection refused")}
)

func newScriptedBridge(replies ...probeReply) *scriptedBridge {
	return &scriptedBridge{replies: replies}
}

func (b *scriptedBridge) Name() string { return "fake" }

func (b *scriptedBridge) Available() error { return b.unusable }

func (b *scriptedBridge) Probe(context.Context) (*openclaw.GatewayStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probes++
	r := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	return r.status, r.err
}

func (b *scriptedBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *scriptedBridge) set(replies ...probeReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = replies
}

func (b *scriptedBridge) probeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probes
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func newTestClient(t *testing.T, bridge Bridge) (*Client, *manualClock, *eventLog) {
	t.Helper()
	clock := newManualClock()
	c := NewClient(Options{
		Bridge:            bridge,
		MaxAttempts:       3,
		Backoff:           Backoff{Base: time.Second, Max: 16 * time.Second},
		HeartbeatInterval: 10 * time.Second,
		Clock:             clock,
	})
	log := &eventLog{}
	c.Subscribe(log.record)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock, log
}

func TestConnectSuccessStartsHeartbeat(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, clock, log := newTestClient(t, bridge)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, []EventKind{EventConnecting, EventConnected}, log.kinds())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, bridge.probeCount())
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, 1, clock.Pending(), "heartbeat rearmed")

	d := c.Diagnostics()
	assert.Equal(t, "fake", d.Bridge)
	require.NotNil(t, d.Status)
	assert.Equal(t, "1.0", d.Status.Version)
	assert.Empty(t, d.LastError)
}

func TestConnectFailureSchedulesReconnect(t *testing.T) {
	bridge := newScriptedBridge(down, up)
	c, clock, log := newTestClient(t, bridge)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateReconnecting, c.State())
	assert.Equal(t, []EventKind{EventConnecting, EventError, EventReconnecting}, log.kinds())

	ev := log.last()
	assert.Equal(t, 1, ev.Attempt)
	assert.Equal(t, 3, ev.MaxAttempts)
	assert.Equal(t, time.Second, ev.Delay)

	clock.Advance(time.Second)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, 0, c.Diagnostics().ReconnectAttempts)
}

func TestNotRunningIsFailure(t *testing.T) {
	bridge := newScriptedBridge(probeReply{status: &openclaw.GatewayStatus{Running: false}})
	c, _, _ := newTestClient(t, bridge)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, StateReconnecting, c.State())
}

func TestUnavailableBridge(t *testing.T) {
	bridge := newScriptedBridge(up)
	bridge.unusable = errors.New("binary not found")
	c, _, _ := newTestClient(t, bridge)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Equal(t, 0, bridge.probeCount())
}

func TestMaxAttemptsEndsDisconnected(t *testing.T) {
	bridge := newScriptedBridge(down)
	c, clock, log := newTestClient(t, bridge)

	_ = c.Connect(context.Background())
	clock.Advance(time.Second)
	clock.Advance(2 * time.Second)
	clock.Advance(4 * time.Second)

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 0, clock.Pending(), "no further reconnect scheduled")
	assert.Equal(t, 4, bridge.probeCount())

	ev := log.last()
	assert.Equal(t, EventError, ev.Kind)
	assert.True(t, ev.Terminal)
	assert.Equal(t, StateDisconnected, ev.State)
	assert.ErrorIs(t, ev.Err, ErrMaxAttempts)

	clock.Advance(time.Minute)
	assert.Equal(t, 4, bridge.probeCount())
}

func TestReconnectResetsAttempts(t *testing.T) {
	bridge := newScriptedBridge(down)
	c, clock, _ := newTestClient(t, bridge)

	_ = c.Connect(context.Background())
	clock.Advance(time.Second)
	clock.Advance(2 * time.Second)
	clock.Advance(4 * time.Second)
	require.Equal(t, StateDisconnected, c.State())

	bridge.set(up)
	require.NoError(t, c.Reconnect(context.Background()))
	d := c.Diagnostics()
	assert.Equal(t, StateConnected, d.State)
	assert.Equal(t, 0, d.ReconnectAttempts)
	assert.Empty(t, d.LastError)
}

func TestDisconnectWhileReconnectingCancelsTimer(t *testing.T) {
	bridge := newScriptedBridge(down)
	c, clock, log := newTestClient(t, bridge)

	_ = c.Connect(context.Background())
	require.Equal(t, StateReconnecting, c.State())
	log.reset()

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, []EventKind{EventDisconnecting, EventDisconnected}, log.kinds())
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, bridge.probeCount())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisconnectWhenDisconnectedIsNoop(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, _, log := newTestClient(t, bridge)

	c.Disconnect()
	assert.Empty(t, log.kinds())
	assert.Equal(t, 0, bridge.closed)
}

func TestDisconnectClosesBridge(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, clock, _ := newTestClient(t, bridge)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	assert.Equal(t, 1, bridge.closed)
	assert.Equal(t, 0, clock.Pending(), "heartbeat stopped")
}

func TestHeartbeatFailureReconnects(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, clock, log := newTestClient(t, bridge)

	require.NoError(t, c.Connect(context.Background()))
	bridge.set(down)
	log.reset()

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateReconnecting, c.State())
	kinds := log.kinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, EventDisconnected, kinds[0])
	assert.Equal(t, EventReconnecting, kinds[1])

	bridge.set(up)
	clock.Advance(time.Second)
	assert.Equal(t, StateConnected, c.State())
}

func TestDisconnectAfterHeartbeatFailureStopsReconnect(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, clock, log := newTestClient(t, bridge)

	require.NoError(t, c.Connect(context.Background()))
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventDisconnected && ev.Err != nil {
			c.Disconnect()
		}
	})
	bridge.set(down)
	log.reset()

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, []EventKind{EventDisconnected}, log.kinds())
	assert.Equal(t, 0, clock.Pending())

	probes := bridge.probeCount()
	clock.Advance(time.Minute)
	assert.Equal(t, probes, bridge.probeCount(), "no reconnect after user disconnect")
}

func TestConnectAfterManualDisconnectResumes(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, _, _ := newTestClient(t, bridge)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	bridge.set(down)

	_ = c.Connect(context.Background())
	assert.Equal(t, StateReconnecting, c.State(), "explicit connect re-enables retries")
}

func TestListenerPanicDoesNotBreakClient(t *testing.T) {
	bridge := newScriptedBridge(up)
	c, _, log := newTestClient(t, bridge)
	c.Subscribe(func(Event) { panic("listener bug") })

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, []EventKind{EventConnecting, EventConnected}, log.kinds())
}

// blockingBridge holds the first probe until release is closed.
type blockingBridge struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingBridge) Name() string     { return "blocking" }
func (b *blockingBridge) Available() error { return nil }

func (b *blockingBridge) Probe(ctx context.Context) (*openclaw.GatewayStatus, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &openclaw.GatewayStatus{Running: true}, nil
}

func TestStaleProbeResultDiscarded(t *testing.T) {
	bridge := &blockingBridge{release: make(chan struct{}), entered: make(chan struct{})}
	c, _, _ := newTestClient(t, bridge)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	<-bridge.entered

	c.Disconnect()
	close(bridge.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestRealClockClientCloseLeavesNoGoroutines(t *testing.T) {
	bridge := newScriptedBridge(down)
	c := NewClient(Options{Bridge: bridge, Backoff: Backoff{Base: time.Hour, Max: time.Hour}})
	_ = c.Connect(context.Background())
	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
}

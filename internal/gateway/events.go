package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a connection event.
type EventKind string

const (
	EventConnecting    EventKind = "connecting"
	EventConnected     EventKind = "connected"
	EventDisconnecting EventKind = "disconnecting"
	EventDisconnected  EventKind = "disconnected"
	EventReconnecting  EventKind = "reconnecting"
	EventError         EventKind = "error"
)

// Event is delivered to connection subscribers.
type Event struct {
	Kind  EventKind `json:"kind"`
	State State     `json:"state"`
	At    time.Time `json:"at"`

	// Reconnecting only.
	Attempt     int           `json:"attempt,omitempty"`
	MaxAttempts int           `json:"maxAttempts,omitempty"`
	Delay       time.Duration `json:"delay,omitempty"`

	// Error (and heartbeat-driven Disconnected).
	Err error `json:"-"`
	// Terminal marks the error emitted once reconnect attempts are exhausted.
	Terminal bool `json:"terminal,omitempty"`
}

// ErrorMessage returns Err as text, or "" when there is none.
func (e Event) ErrorMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Subscription identifies one registered listener.
type Subscription string

type listener[T any] struct {
	id Subscription
	fn func(T)
}

// Observers is an ordered listener list. Listeners run in registration order;
// a panicking listener is logged and does not stop the others.
type Observers[T any] struct {
	mu        sync.RWMutex
	listeners []listener[T]
	logger    *slog.Logger
}

// NewObservers creates an empty listener list.
func NewObservers[T any](logger *slog.Logger) *Observers[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observers[T]{logger: logger}
}

// Subscribe registers fn and returns its token.
func (o *Observers[T]) Subscribe(fn func(T)) Subscription {
	id := Subscription(uuid.NewString())
	o.mu.Lock()
	o.listeners = append(o.listeners, listener[T]{id: id, fn: fn})
	o.mu.Unlock()
	return id
}

// Unsubscribe removes the listener for id. Unknown or already removed ids are
// ignored.
func (o *Observers[T]) Unsubscribe(id Subscription) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, l := range o.listeners {
		if l.id == id {
			o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (o *Observers[T]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.listeners)
}

// Emit calls every listener with v.
func (o *Observers[T]) Emit(v T) {
	o.mu.RLock()
	snapshot := make([]listener[T], len(o.listeners))
	copy(snapshot, o.listeners)
	o.mu.RUnlock()

	for _, l := range snapshot {
		o.call(l, v)
	}
}

func (o *Observers[T]) call(l listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("listener panic recovered", "subscription", string(l.id), "panic", fmt.Sprint(r))
		}
	}()
	l.fn(v)
}

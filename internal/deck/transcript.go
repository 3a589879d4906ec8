package deck

import (
	"sync"
	"time"
)

// Role is who authored a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// EntryStatus tracks an entry through the send lifecycle.
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusSent     EntryStatus = "sent"
	StatusFailed   EntryStatus = "failed"
	StatusReceived EntryStatus = "received"
)

const defaultTranscriptLimit = 200

// Entry is one chat line.
type Entry struct {
	ID         string      `json:"id" yaml:"id"`
	SessionKey string      `json:"sessionKey" yaml:"sessionKey"`
	Role       Role        `json:"role" yaml:"role"`
	Sender     string      `json:"sender,omitempty" yaml:"sender,omitempty"`
	Text       string      `json:"text" yaml:"text"`
	Status     EntryStatus `json:"status" yaml:"status"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	At         time.Time   `json:"at" yaml:"at"`
}

// Transcript keeps the most recent entries per session key in memory.
type Transcript struct {
	mu        sync.RWMutex
	limit     int
	bySession map[string][]Entry
}

// NewTranscript creates a transcript keeping at most limit entries per
// session (200 when limit <= 0).
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	return &Transcript{limit: limit, bySession: make(map[string][]Entry)}
}

// Append adds e, dropping the oldest entry of its session when full. An entry
// whose ID is already present replaces it in place.
func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.bySession[e.SessionKey]
	if e.ID != "" {
		for i := range list {
			if list[i].ID == e.ID {
				list[i] = e
				return
			}
		}
	}
	list = append(list, e)
	if len(list) > t.limit {
		list = append([]Entry(nil), list[len(list)-t.limit:]...)
	}
	t.bySession[e.SessionKey] = list
}

// Update applies fn to the entry with id in session. It reports whether the
// entry was found.
func (t *Transcript) Update(session, id string, fn func(*Entry)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.bySession[session]
	for i := range list {
		if list[i].ID == id {
			fn(&list[i])
			return true
		}
	}
	return false
}

// Entries returns a copy of session's entries, oldest first.
func (t *Transcript) Entries(session string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry{}, t.bySession[session]...)
}

// Clear drops session's entries.
func (t *Transcript) Clear(session string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bySession, session)
}

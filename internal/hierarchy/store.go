// Package hierarchy tracks which session spawned which. The mapping is purely
// client-side bookkeeping: the gateway never reports it, so it is rebuilt from
// push-socket spawn events and kept in local storage between runs.
package hierarchy

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/openclaw/claw-deck/internal/localstore"
)

// StorageKey is the local-storage key holding the whole mapping.
const StorageKey = "clawdeck.sessionHierarchy"

// Entry is the bookkeeping for one session id.
type Entry struct {
	Parent   string   `json:"parentId,omitempty"`
	Children []string `json:"children"`
	Label    string   `json:"label,omitempty"`
}

// Backend persists the serialized mapping. *localstore.Store satisfies it.
type Backend interface {
	GetJSON(key string, v any) error
	SetJSON(key string, v any) error
	Delete(key string) error
}

// Store is the parent/child mapping. Child-list membership and a child's
// recorded parent are kept in step by AddSpawn, but nothing repairs data that
// was edited out of band.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	backend Backend
	logger  *slog.Logger
}

// Open loads the mapping from backend. Missing or corrupt data yields an empty
// store; the failure is logged, never returned.
func Open(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{entries: make(map[string]*Entry), backend: backend, logger: logger}
	if backend == nil {
		return s
	}

	var loaded map[string]*Entry
	err := backend.GetJSON(StorageKey, &loaded)
	switch {
	case errors.Is(err, localstore.ErrNotFound):
	case err != nil:
		logger.Warn("session hierarchy unreadable, starting empty", "error", err)
	default:
		for id, e := range loaded {
			if id == "" || e == nil {
				continue
			}
			if e.Children == nil {
				e.Children = []string{}
			}
			s.entries[id] = e
		}
	}
	return s
}

// AddSpawn records that parent spawned child. Repeating the call is harmless:
// child is appended to parent's list only once. A non-empty label is attached
// to child.
func (s *Store) AddSpawn(parent, child, label string) error {
	if parent == "" || child == "" {
		return fmt.Errorf("spawn needs parent and child ids (got %q, %q)", parent, child)
	}
	if parent == child {
		return fmt.Errorf("session %q cannot spawn itself", child)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensureLocked(parent)
	c := s.ensureLocked(child)
	c.Parent = parent
	if label != "" {
		c.Label = label
	}
	if !slices.Contains(p.Children, child) {
		p.Children = append(p.Children, child)
	}
	return s.persistLocked()
}

// Children returns the ordered child ids of id (empty when unknown).
func (s *Store) Children(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return []string{}
	}
	return append([]string{}, e.Children...)
}

// Parent returns the parent of id and whether one is recorded.
func (s *Store) Parent(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.Parent == "" {
		return "", false
	}
	return e.Parent, true
}

// Label returns the label attached to id, if any.
func (s *Store) Label(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return e.Label
	}
	return ""
}

// Len returns the number of known ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a deep copy of the mapping.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		cp := *e
		cp.Children = append([]string{}, e.Children...)
		out[id] = cp
	}
	return out
}

// Clear empties the mapping and evicts the persisted copy.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Delete(StorageKey); err != nil {
		return fmt.Errorf("evict session hierarchy: %w", err)
	}
	return nil
}

// Node is one row of a flattened tree.
type Node struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Parent string `json:"parentId,omitempty"`
	Level  int    `json:"level"`
}

// Flatten walks the forest rooted at roots depth-first, children in spawn
// order. A root that descends from another root is rendered under it instead
// of at level 0. Cycles in stored data are cut.
func (s *Store) Flatten(roots []string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Node
	seen := make(map[string]bool)
	var walk func(id, parent string, level int)
	walk = func(id, parent string, level int) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := Node{ID: id, Parent: parent, Level: level}
		if e, ok := s.entries[id]; ok {
			n.Label = e.Label
			out = append(out, n)
			for _, child := range e.Children {
				walk(child, id, level+1)
			}
			return
		}
		out = append(out, n)
	}

	for _, id := range roots {
		if p, ok := s.entries[id]; ok && p.Parent != "" && s.inRoots(p.Parent, roots) {
			continue
		}
		walk(id, "", 0)
	}
	// roots skipped above whose parent does not list them
	for _, id := range roots {
		walk(id, "", 0)
	}
	return out
}

// inRoots reports whether id is one of roots or descends from one of them.
func (s *Store) inRoots(id string, roots []string) bool {
	visited := make(map[string]bool)
	for cur := id; cur != "" && !visited[cur]; {
		if slices.Contains(roots, cur) {
			return true
		}
		visited[cur] = true
		e, ok := s.entries[cur]
		if !ok {
			return false
		}
		cur = e.Parent
	}
	return false
}

func (s *Store) ensureLocked(id string) *Entry {
	e, ok := s.entries[id]
	if !ok {
		e = &Entry{Children: []string{}}
		s.entries[id] = e
	}
	return e
}

// persistLocked writes the whole mapping. A write failure is logged and
// returned; the in-memory mapping keeps the change.
func (s *Store) persistLocked() error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.SetJSON(StorageKey, s.entries); err != nil {
		s.logger.Warn("persist session hierarchy failed", "error", err)
		return fmt.Errorf("persist session hierarchy: %w", err)
	}
	return nil
}

// IDs returns every known id, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

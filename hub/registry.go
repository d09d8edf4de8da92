package hub

import (
	"sort"
	"sync"

	"dm-lab/domain"
)

// Registry is the in-memory presence map: username -> live connection.
// It is the only shared mutable structure touched by concurrent
// handlers, so every read-modify-write happens under the mutex. All
// operations are total; callers decide whether a change is broadcast.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.PresenceEntry // keyed by username
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]domain.PresenceEntry)}
}

// Upsert inserts or refreshes the presence entry for username.
// It returns true when the user just came online. A reconnect (browser
// tab refresh) only swaps the connection id in place and returns false
// so that callers skip the "user appeared" broadcast.
func (r *Registry) Upsert(username, connectionID, displayName, avatarURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[username]; ok {
		entry.ConnectionID = connectionID
		r.entries[username] = entry
		return false
	}
	r.entries[username] = domain.PresenceEntry{
		Username:     username,
		ConnectionID: connectionID,
		DisplayName:  displayName,
		AvatarURL:    avatarURL,
	}
	return true
}

// Remove deletes the entry for username and reports whether it existed.
func (r *Registry) Remove(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[username]
	delete(r.entries, username)
	return ok
}

// Lookup returns the connection id currently reaching username.
func (r *Registry) Lookup(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[username]
	if !ok {
		return "", false
	}
	return entry.ConnectionID, true
}

// Snapshot returns all entries sorted by username, copied under a
// single lock acquisition so iteration never observes a torn state.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.PresenceEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot = append(snapshot, entry)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Username < snapshot[j].Username
	})
	return snapshot
}

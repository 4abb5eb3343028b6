// Package presence tracks which users currently hold a live socket and pushes
// events to them.
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Handle is the minimal interface the registry needs from a socket: a stable
// id to tell sessions apart and the ability to emit an event.
type Handle interface {
	ID() string
	Emit(event string, args ...interface{})
}

// Registry maps user ids to their current socket. A user has at most one
// entry; a newer connection replaces the older one.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	log     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		handles: make(map[string]Handle),
		log:     log.With().Str("component", "presence").Logger(),
	}
}

// Register records h as the live socket of userID, replacing any previous one.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.handles[userID]; ok && prev.ID() != h.ID() {
		r.log.Debug().Str("user_id", userID).Str("replaced", prev.ID()).Msg("presence entry replaced")
	}
	r.handles[userID] = h
}

// Unregister removes the entry for userID only if it still points at h and
// reports whether it did. A stale socket closing after a reconnect leaves the
// newer entry alone.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.handles[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.handles, userID)
	return true
}

// PushToUser emits event to the socket of userID, if any. It never blocks on
// the network and reports whether an emit was attempted successfully.
func (r *Registry) PushToUser(userID, event string, payload interface{}) bool {
	r.mu.RLock()
	h, ok := r.handles[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return r.emit(h, userID, event, payload)
}

// Broadcast emits event to every registered socket.
func (r *Registry) Broadcast(event string, payload interface{}) {
	r.mu.RLock()
	targets := make(map[string]Handle, len(r.handles))
	for id, h := range r.handles {
		targets[id] = h
	}
	r.mu.RUnlock()

	for id, h := range targets {
		r.emit(h, id, event, payload)
	}
}

// emit calls h.Emit and turns a panic from a closed socket into a failed
// delivery.
func (r *Registry) emit(h Handle, userID, event string, payload interface{}) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn().
				Str("user_id", userID).
				Str("event", event).
				Interface("panic", rec).
				Msg("push failed")
			ok = false
		}
	}()
	h.Emit(event, payload)
	return true
}

// IsOnline reports whether userID has a registered socket.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[userID]
	return ok
}

// Online returns the ids of every user with a registered socket, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Package runtime wires the stateful services of the relay: connection
// registry, room topology, message dispatch, presence and call signaling.
// It orchestrates without containing storage or transport logic.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry is the process-wide map of user -> live connection and the
// presence source of truth. It is an explicit, constructor-injected service
// rather than a package singleton so several server instances and isolated
// tests can each own one.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]contract.ActiveConnection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]contract.ActiveConnection)}
}

// Register installs the connection for its user, silently replacing any
// previous one (single-active-connection policy: last registered wins).
// Returns true when an older connection was displaced.
func (r *Registry) Register(conn domain.Connection, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.conns[conn.UserID]
	r.conns[conn.UserID] = contract.ActiveConnection{Conn: conn, Sink: sink}
	return replaced
}

// Unregister clears the user's mapping only while it still belongs to
// connectionID. A stale disconnect from an older connection must never
// clobber a newer registration.
func (r *Registry) Unregister(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current.Conn.ID != connectionID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the user's newest live connection.
func (r *Registry) Lookup(userID string) (contract.ActiveConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Count returns the number of live connections, for telemetry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

package realtime

import "sync"

// Registry is the single source of truth for which user is reachable on
// which connection. At most one connection per user: a second registration
// for the same user replaces the first. All access goes through the mutex;
// mutations are fast, non-suspending critical sections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register maps the user to the connection, unconditionally overwriting any
// prior mapping, and returns the displaced connection if there was one so the
// caller can close it.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	displaced := r.conns[userID]
	r.conns[userID] = conn
	if displaced == conn {
		return nil
	}
	return displaced
}

// Unregister removes the mapping, but only while it still points at the
// given connection: a replaced connection tearing itself down must not evict
// its successor. Reports whether an entry was removed; removing an absent
// entry is a benign no-op.
func (r *Registry) Unregister(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[userID]
	if !ok {
		return false
	}
	if conn != nil && current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the user's current connection. Never blocks, never fails.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the current set of online user identifiers.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		online = append(online, userID)
	}
	return online
}

// Connections returns every registered connection handle.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		handles = append(handles, conn)
	}
	return handles
}

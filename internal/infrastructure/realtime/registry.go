package realtime

import "sync"

// Registry is the single source of truth for "is this user currently
// reachable". It maps each user to at most one active connection; a newer
// connection supersedes the previous one for routing.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Connection)}
}

// Register records the user↔connection mapping and returns the superseded
// connection, if any. The caller is expected to close the returned handle so
// the evicted client learns its session was replaced.
func (r *Registry) Register(conn *Connection) (replaced *Connection) {
	r.mu.Lock()
	replaced = r.byUser[conn.UserID]
	r.byUser[conn.UserID] = conn
	r.mu.Unlock()
	return replaced
}

// Unregister removes the mapping only if conn is still the registered handle,
// guarding against a stale disconnect racing a newer registration. It reports
// whether an entry was actually removed, and is safe to call repeatedly.
func (r *Registry) Unregister(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byUser[conn.UserID]
	if !ok || current.ID != conn.ID {
		return false
	}
	delete(r.byUser, conn.UserID)
	return true
}

// Lookup returns the user's active connection, or nil when offline.
func (r *Registry) Lookup(userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// Online reports whether the user has an active connection.
func (r *Registry) Online(userID string) bool {
	return r.Lookup(userID) != nil
}

// NotifyUser delivers payload to the user's current connection. Stale or
// missing targets are simply skipped; delivery is best-effort.
func (r *Registry) NotifyUser(userID string, payload []byte) bool {
	conn := r.Lookup(userID)
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Close terminates every tracked connection and clears the table.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.byUser))
	for _, c := range r.byUser {
		conns = append(conns, c)
	}
	r.byUser = make(map[string]*Connection)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close(1001, "registry shutdown")
	}
}

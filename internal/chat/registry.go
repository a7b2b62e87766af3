package chat

import (
	"fmt"
	"sync"
)

// Session is the identity and display metadata of one connection.
type Session struct {
	ID          uint64
	DisplayName string
	Color       string
}

// DefaultDisplayName is the name a connection starts with.
func DefaultDisplayName(id uint64) string {
	return fmt.Sprintf("User%d", id)
}

// Registry maps live connections to their sessions. It is the authoritative
// list of who is online and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Conn]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Conn]*Session)}
}

// Register adds conn with the given session. Registering the same
// connection twice returns ErrDuplicateHandle and leaves the first entry
// untouched.
func (r *Registry) Register(conn Conn, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conn]; exists {
		return fmt.Errorf("register user %d: %w", s.ID, ErrDuplicateHandle)
	}
	r.sessions[conn] = &s
	return nil
}

// Unregister removes conn and returns the session it held. The boolean is
// false when conn was not registered; that case is not an error.
func (r *Registry) Unregister(conn Conn) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, conn)
	return *s, true
}

// Get returns a copy of the session registered for conn, or ErrNotFound.
func (r *Registry) Get(conn Conn) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[conn]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// Rename replaces the display name of conn's session and returns the
// previous name.
func (r *Registry) Rename(conn Conn, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conn]
	if !ok {
		return "", ErrNotFound
	}
	old := s.DisplayName
	s.DisplayName = name
	return old, nil
}

// Snapshot returns the connections registered at the time of the call.
// The slice is owned by the caller.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.sessions))
	for conn := range r.sessions {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

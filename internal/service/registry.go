package service

import (
	"sync"

	"wagate/internal/errors"
)

// Registry is the single source of truth for live sessions. The presence
// check and insert in Register share one critical section, so two
// concurrent initializations of the same tenant cannot both win.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register claims the tenant slot for the given session. Returns
// ALREADY_ACTIVE when a live session already holds it.
func (r *Registry) Register(tenantID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[tenantID]; exists {
		return errors.NewAlreadyActiveError(tenantID)
	}

	r.sessions[tenantID] = s
	return nil
}

// Lookup returns the live session for a tenant, or NOT_FOUND.
func (r *Registry) Lookup(tenantID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[tenantID]
	if !exists {
		return nil, errors.NewNotFoundError(tenantID)
	}
	return s, nil
}

// Remove releases the tenant slot. Removing an absent tenant is a no-op.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tenantID)
}

// Active returns the tenant IDs with a live session.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Drain removes and returns all live sessions; used at process shutdown.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		drained = append(drained, s)
		delete(r.sessions, id)
	}
	return drained
}

package upload

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore is a concurrent in-memory index of live upload sessions.
// Operations on different sessions never contend beyond the map itself.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore builds an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Put registers a session under its upload id.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.UploadID] = s
}

// Get returns the session for an upload id, scoped to the owner. A session
// owned by someone else is reported as absent.
func (st *SessionStore) Get(uploadID string, ownerID uuid.UUID) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[uploadID]
	if !ok || s.OwnerID != ownerID {
		return nil, false
	}
	return s, true
}

// Remove drops a session from the index.
func (st *SessionStore) Remove(uploadID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, uploadID)
}

// IdleBefore returns sessions whose last activity predates the cutoff.
func (st *SessionStore) IdleBefore(cutoff time.Time) []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var idle []*Session
	for _, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	return idle
}

// Len reports the number of tracked sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

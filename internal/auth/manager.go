package auth

import (
	"sync"
	"time"
)

// Manager hands out one Session per client id.
type Manager struct {
	store TokenStore

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store TokenStore) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Session(clientID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		s = newSession(clientID, m.store)
		m.sessions[clientID] = s
	}
	return s
}

// Acquire returns the client's Session and marks it in use until release is
// called. Sweep never drops a session in use, so a 401 seen by a slow call
// clears the same Session later requests get.
func (m *Manager) Acquire(clientID string) (sess *Session, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		s = newSession(clientID, m.store)
		m.sessions[clientID] = s
	}
	s.inUse++
	var once sync.Once
	return s, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			s.inUse--
		})
	}
}

// Sweep forgets in-memory state of clients idle for longer than maxIdle and
// not in use. Persisted tokens are kept; the next request restores from them.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.inUse == 0 && s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) Store() TokenStore {
	return m.store
}

package auth

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateError           State = "error"
)

// Session is the auth context of one console client. It is handed to every
// component that calls the backend on the client's behalf and implements
// backend.TokenProvider.
type Session struct {
	ID string

	store TokenStore

	mu       sync.Mutex
	state    State
	lastErr  string
	restored bool
	lastSeen time.Time

	// inUse counts Manager.Acquire holders; guarded by the Manager's mutex.
	inUse int
}

type Status struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

func newSession(id string, store TokenStore) *Session {
	return &Session{
		ID:       id,
		store:    store,
		state:    StateUnauthenticated,
		lastSeen: time.Now(),
	}
}

// Restore marks the session authenticated when a token is already persisted.
// The token is not checked with the backend; an expired one surfaces on the
// next rejected call.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	if s.restored {
		return nil
	}
	_, ok, err := s.store.Get(ctx, s.ID, TokenKey)
	if err != nil {
		return err
	}
	s.restored = true
	if ok {
		s.state = StateAuthenticated
	}
	return nil
}

func (s *Session) AccessToken(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, s.ID, TokenKey)
	return v, err
}

// ClearAuth drops every persisted auth key and resets the state.
func (s *Session) ClearAuth(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.lastErr = ""
	s.mu.Unlock()
	return s.store.Delete(ctx, s.ID, authKeys...)
}

func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoading
	s.lastErr = ""
}

func (s *Session) Authenticate(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, s.ID, TokenKey, token); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.lastErr = ""
	return nil
}

// Fail records a failed login or signup. Any stored token is dropped so the
// client ends up unauthenticated.
func (s *Session) Fail(ctx context.Context, message string) error {
	s.mu.Lock()
	s.state = StateError
	s.lastErr = message
	s.mu.Unlock()
	return s.store.Delete(ctx, s.ID, TokenKey)
}

// Settle leaves the loading state without changing authentication, as after
// a signup.
func (s *Session) Settle(ctx context.Context) {
	_, ok, _ := s.store.Get(ctx, s.ID, TokenKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	if ok {
		s.state = StateAuthenticated
	} else {
		s.state = StateUnauthenticated
	}
}

func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	if s.state == StateError {
		s.state = StateUnauthenticated
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Error: s.lastErr}
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

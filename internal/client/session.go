package client

import "sync"

// Session holds the authenticated caller state carried between requests.
type Session struct {
	Token        string
	MemberID     string
	Email        string
	Role         string
	ReferralCode string
}

// SessionStore keeps the active session for a client. It is safe for
// concurrent use; the poller and interactive calls share one store.
type SessionStore struct {
	mu      sync.RWMutex
	session Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Set replaces the stored session.
func (s *SessionStore) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Get returns a copy of the stored session.
func (s *SessionStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Clear drops the stored session.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}

// Authenticated reports whether a token is present.
func (s *SessionStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token != ""
}

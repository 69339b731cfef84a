package client

import "sync"

// SessionContext holds the bearer token for the lifetime of a login. It is
// injected into the Client rather than read from ambient storage, and is
// cleared explicitly on logout or when the server answers 401.
type SessionContext struct {
	mu       sync.RWMutex
	token    string
	username string
}

func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// Init stores the credentials issued at login.
func (s *SessionContext) Init(token, username string) {
	s.mu.Lock()
	s.token = token
	s.username = username
	s.mu.Unlock()
}

// Clear forgets the session.
func (s *SessionContext) Clear() {
	s.mu.Lock()
	s.token = ""
	s.username = ""
	s.mu.Unlock()
}

func (s *SessionContext) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionContext) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *SessionContext) Authenticated() bool {
	return s.Token() != ""
}

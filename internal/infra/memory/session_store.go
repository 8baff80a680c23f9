package memory

import (
	"sync"

	"utbk-exam-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by token code.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(code string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[code] = session
}

func (s *SessionStore) Get(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	return session, ok
}

func (s *SessionStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"utbk-exam-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local in-memory map; timers and the violation
//     latch are in-process state that cannot round-trip through Redis.
//   - Redis marks attempt liveness per token code so operators (and other
//     instances) can see which credentials are mid-exam.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(code string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[code] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(code), session.ID(), s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

func (s *SessionStore) key(code string) string {
	return "exam:attempt:" + code
}

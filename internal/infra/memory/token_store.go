package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"utbk-exam-service/internal/domain"
)

// TokenStore is an in-memory implementation of app.TokenRepository.
// Consumption is a conditional update under the lock, so concurrent
// redemptions of one code have at most one winner.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*domain.AccessToken
}

func NewTokenStore(tokens ...domain.AccessToken) *TokenStore {
	store := &TokenStore{tokens: make(map[string]*domain.AccessToken, len(tokens))}
	for i := range tokens {
		t := tokens[i]
		if t.Status == "" {
			t.Status = domain.TokenUnused
		}
		store.tokens[t.Code] = &t
	}
	return store
}

func (s *TokenStore) Find(_ context.Context, code string) (domain.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[code]
	if !ok {
		return domain.AccessToken{}, domain.ErrTokenNotFound
	}
	return *token, nil
}

func (s *TokenStore) Consume(_ context.Context, code string, loginAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[code]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if token.Status != domain.TokenUnused {
		return domain.ErrTokenUsed
	}
	token.Status = domain.TokenUsed
	token.LoginAt = &loginAt
	return nil
}

// RecordOutcome writes the final score once; a second call is a no-op.
func (s *TokenStore) RecordOutcome(_ context.Context, code string, score, remainingSeconds int, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[code]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if token.Score != nil {
		return nil
	}
	token.Score = &score
	token.RemainingSeconds = &remainingSeconds
	token.FinishedAt = &finishedAt
	return nil
}

func (s *TokenStore) TopOutcomes(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.tokens))
	for _, token := range s.tokens {
		if token.Score == nil {
			continue
		}
		remaining := 0
		if token.RemainingSeconds != nil {
			remaining = *token.RemainingSeconds
		}
		entries = append(entries, domain.LeaderboardEntry{
			OwnerName:        token.OwnerName,
			Score:            *token.Score,
			RemainingSeconds: remaining,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].RemainingSeconds > entries[j].RemainingSeconds
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *TokenStore) CountBetter(_ context.Context, score, remainingSeconds int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	better := 0
	for _, token := range s.tokens {
		if token.Score == nil {
			continue
		}
		remaining := 0
		if token.RemainingSeconds != nil {
			remaining = *token.RemainingSeconds
		}
		if *token.Score > score || (*token.Score == score && remaining > remainingSeconds) {
			better++
		}
	}
	return better, nil
}

package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"utbk-exam-service/internal/domain"
)

// BankLoader fetches a stage's question pool from a backing store.
type BankLoader interface {
	LoadStagePool(ctx context.Context, stageID string) ([]domain.Question, error)
}

// QuestionBank caches stage pools with TTL to avoid repeated store hits.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	pool      []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedPool),
	}
}

func (b *QuestionBank) StagePool(ctx context.Context, stageID string) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[stageID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.pool, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(stageID, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[stageID]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.pool, nil
		}
		b.mu.RUnlock()

		pool, err := b.loader.LoadStagePool(ctx, stageID)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[stageID] = cachedPool{
			pool:      pool,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations; the global source is
	// safe across concurrent refills
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// StaticBankLoader serves pools from an in-memory map (tests/demos).
// A stage with no pool loads as empty, mirroring an unseeded bank document.
type StaticBankLoader struct {
	pools map[string][]domain.Question
}

func NewStaticBankLoader(pools map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{pools: pools}
}

func (l *StaticBankLoader) LoadStagePool(_ context.Context, stageID string) ([]domain.Question, error) {
	return l.pools[stageID], nil
}

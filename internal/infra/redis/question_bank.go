package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"utbk-exam-service/internal/domain"
)

// BankLoader fetches a stage's question pool from a backing store.
type BankLoader interface {
	LoadStagePool(ctx context.Context, stageID string) ([]domain.Question, error)
}

// QuestionBank caches stage pools in Redis (JSON blob per stage) and falls
// back to a loader on cache miss.
// Pools are stored as: SET bank:{stageID}:pool {json}
type QuestionBank struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionBank(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (b *QuestionBank) StagePool(ctx context.Context, stageID string) ([]domain.Question, error) {
	key := b.poolKey(stageID)

	if raw, err := b.client.Get(ctx, key).Bytes(); err == nil {
		var pool []domain.Question
		if err := json.Unmarshal(raw, &pool); err == nil {
			return pool, nil
		}
		// fall through and reload on a corrupt cache entry
	}

	result, err, _ := b.sf.Do(stageID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := b.client.Get(ctx, key).Bytes(); err == nil {
			var pool []domain.Question
			if err := json.Unmarshal(raw, &pool); err == nil {
				return pool, nil
			}
		}

		pool, err := b.loader.LoadStagePool(ctx, stageID)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(pool); err == nil {
			_ = b.client.Set(ctx, key, raw, b.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) poolKey(stageID string) string {
	return "bank:" + stageID + ":pool"
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// singleflight serializes refills per stage, not across stages, so
	// the jitter draw must come from the concurrency-safe global source
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

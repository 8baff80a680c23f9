package memory

import (
	"context"
	"testing"
	"time"

	"utbk-exam-service/internal/domain"
)

func TestQuestionBankCaches(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string][]domain.Question{
			"pu": samplePool(),
		}),
	}
	bank := NewQuestionBank(loader, time.Minute)

	if _, err := bank.StagePool(context.Background(), "pu"); err != nil {
		t.Fatalf("stage pool: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := bank.StagePool(context.Background(), "pu"); err != nil {
		t.Fatalf("stage pool 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticLoaderMissingStageIsEmpty(t *testing.T) {
	loader := NewStaticBankLoader(map[string][]domain.Question{})
	pool, err := loader.LoadStagePool(context.Background(), "pm")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) != 0 {
		t.Fatalf("expected empty pool for unseeded stage, got %d", len(pool))
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) LoadStagePool(ctx context.Context, stageID string) ([]domain.Question, error) {
	l.calls++
	return l.BankLoader.LoadStagePool(ctx, stageID)
}

func samplePool() []domain.Question {
	return []domain.Question{
		{
			Prompt:  "What is 2 + 2?",
			Options: []string{"3", "4", "5", "6", "7"},
			Correct: "B",
		},
	}
}

package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utbk-exam-service/internal/domain"
)

func testPools(stages []domain.StageDefinition, extra int) map[string][]domain.Question {
	pools := make(map[string][]domain.Question, len(stages))
	for _, stage := range stages {
		pool := make([]domain.Question, 0, stage.Questions+extra)
		for i := 0; i < stage.Questions+extra; i++ {
			pool = append(pool, domain.Question{
				Prompt:  fmt.Sprintf("%s-%d", stage.ID, i),
				Options: []string{"1", "2", "3", "4", "5"},
				Correct: "A",
			})
		}
		pools[stage.ID] = pool
	}
	return pools
}

func TestPlanRespectsQuotasWithoutDuplicates(t *testing.T) {
	stages := domain.Stages()
	pools := testPools(stages, 7)

	p, err := newPlanner().build(stages, pools)
	require.NoError(t, err)

	require.Len(t, p.stageOrder, len(stages))
	seen := make(map[string]bool, len(stages))
	for _, stage := range p.stageOrder {
		assert.False(t, seen[stage.ID], "stage %s repeated in order", stage.ID)
		seen[stage.ID] = true
	}

	for _, stage := range stages {
		selection := p.selection[stage.ID]
		require.Len(t, selection, stage.Questions, "stage %s selection size", stage.ID)
		prompts := make(map[string]bool, len(selection))
		for _, q := range selection {
			assert.False(t, prompts[q.Prompt], "duplicate question %s", q.Prompt)
			prompts[q.Prompt] = true
		}
	}
}

func TestPlanExactPoolSize(t *testing.T) {
	stages := domain.Stages()
	pools := testPools(stages, 0)

	p, err := newPlanner().build(stages, pools)
	require.NoError(t, err)
	for _, stage := range stages {
		assert.Len(t, p.selection[stage.ID], stage.Questions)
	}
}

func TestPlanFailsOnDeficientStage(t *testing.T) {
	stages := domain.Stages()
	pools := testPools(stages, 3)
	pools["pk"] = pools["pk"][:stages[3].Questions-1] // one short

	_, err := newPlanner().build(stages, pools)
	var bankErr *domain.InsufficientBankError
	require.True(t, errors.As(err, &bankErr))
	assert.Equal(t, "pk", bankErr.StageID)
	assert.Equal(t, stages[3].Questions, bankErr.Need)
}

package app

import (
	"math/rand"
	"sync"
	"time"

	"utbk-exam-service/internal/domain"
)

// plan is a session's fixed run order: a permutation of the stage table plus
// an exactly-quota shuffled draw from each stage's pool.
type plan struct {
	stageOrder []domain.StageDefinition
	selection  map[string][]domain.Question
}

// planner randomizes stage order and question draws. rand.Rand is not safe
// for concurrent use, so draws are serialized.
type planner struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newPlanner() *planner {
	return &planner{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// build validates every stage's pool before committing to anything: a plan
// is all-or-nothing, there is no partial session.
func (p *planner) build(stages []domain.StageDefinition, pools map[string][]domain.Question) (plan, error) {
	for _, stage := range stages {
		if len(pools[stage.ID]) < stage.Questions {
			return plan{}, &domain.InsufficientBankError{
				StageID: stage.ID,
				Have:    len(pools[stage.ID]),
				Need:    stage.Questions,
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	order := make([]domain.StageDefinition, len(stages))
	copy(order, stages)
	p.rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	selection := make(map[string][]domain.Question, len(stages))
	for _, stage := range stages {
		pool := pools[stage.ID]
		// Perm gives a shuffled draw without replacement; the first quota
		// positions fix the presentation order.
		picks := p.rnd.Perm(len(pool))[:stage.Questions]
		questions := make([]domain.Question, 0, stage.Questions)
		for _, idx := range picks {
			questions = append(questions, pool[idx])
		}
		selection[stage.ID] = questions
	}

	return plan{stageOrder: order, selection: selection}, nil
}

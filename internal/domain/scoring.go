package domain

// AnswerKey addresses one question slot within a session's selection.
type AnswerKey struct {
	StageID  string
	Question int
}

// ScoreResult is the derived score breakdown for a completed answer set.
type ScoreResult struct {
	PerStage map[string]int `json:"perStage"`
	Total    int            `json:"total"`
}

// Score grades an answer set against a question selection.
// Unanswered questions cost 1 point, correct answers earn 4, wrong answers
// earn nothing. The function is pure: same inputs, same result.
func Score(stageOrder []StageDefinition, selection map[string][]Question, answers map[AnswerKey]string) ScoreResult {
	result := ScoreResult{PerStage: make(map[string]int, len(stageOrder))}
	for _, stage := range stageOrder {
		sub := 0
		for i, q := range selection[stage.ID] {
			chosen, ok := answers[AnswerKey{StageID: stage.ID, Question: i}]
			switch {
			case !ok || chosen == "":
				sub--
			case chosen == q.Correct:
				sub += 4
			}
		}
		result.PerStage[stage.ID] = sub
		result.Total += sub
	}
	return result
}

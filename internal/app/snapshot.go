package app

import "utbk-exam-service/internal/domain"

// QuestionView is the candidate-facing projection of the active question.
// The correct label never leaves the server.
type QuestionView struct {
	Prompt  string   `json:"prompt"`
	Image   string   `json:"image,omitempty"`
	Options []string `json:"options"`
	Chosen  string   `json:"chosen,omitempty"`
	Flagged bool     `json:"flagged"`
}

// QuestionMark backs the question navigator grid.
type QuestionMark struct {
	Answered bool `json:"answered"`
	Flagged  bool `json:"flagged"`
}

// ResultView is the result-phase payload. Leaderboard and Rank arrive after
// the compiler finishes; until then LeaderboardReady is false and the client
// shows a loading state. Rank zero means unranked.
type ResultView struct {
	Stages           []domain.StageDefinition  `json:"stages"`
	Scores           map[string]int            `json:"scores"`
	Total            int                       `json:"total"`
	RemainingSeconds int                       `json:"remainingSeconds"`
	Leaderboard      []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
	Rank             int                       `json:"rank"`
	LeaderboardReady bool                      `json:"leaderboardReady"`
}

// Snapshot is one complete view of the session, pushed on every change.
type Snapshot struct {
	SessionID        string                  `json:"sessionId"`
	OwnerName        string                  `json:"ownerName"`
	Phase            domain.Phase            `json:"phase"`
	StageIndex       int                     `json:"stageIndex"`
	StageCount       int                     `json:"stageCount"`
	Stage            *domain.StageDefinition `json:"stage,omitempty"`
	QuestionIndex    int                     `json:"questionIndex"`
	Question         *QuestionView           `json:"question,omitempty"`
	Marks            []QuestionMark          `json:"marks,omitempty"`
	RemainingSeconds int                     `json:"remainingSeconds"`
	BreakSeconds     int                     `json:"breakSeconds"`
	Violation        string                  `json:"violation,omitempty"`
	Result           *ResultView             `json:"result,omitempty"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel fed with snapshots until cancel is called.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow client never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		OwnerName:        s.ownerName,
		Phase:            s.phase,
		StageIndex:       s.stageIndex,
		StageCount:       len(s.stageOrder),
		QuestionIndex:    s.questionIdx,
		RemainingSeconds: s.remaining,
		BreakSeconds:     s.breakLeft,
		Violation:        s.violation,
	}
	if s.result != nil {
		// Copy so a snapshot already handed to a writer is never mutated
		// when the leaderboard compiler fills the view in later.
		result := *s.result
		snap.Result = &result
	}
	if s.phase == domain.PhaseTest {
		stage := s.activeStageLocked()
		snap.Stage = &stage
		q := s.selection[stage.ID][s.questionIdx]
		key := s.activeKeyLocked()
		snap.Question = &QuestionView{
			Prompt:  q.Prompt,
			Image:   q.Image,
			Options: q.Options,
			Chosen:  s.answers[key],
			Flagged: s.flags[key],
		}
		marks := make([]QuestionMark, stage.Questions)
		for i := range marks {
			k := domain.AnswerKey{StageID: stage.ID, Question: i}
			marks[i] = QuestionMark{Answered: s.answers[k] != "", Flagged: s.flags[k]}
		}
		snap.Marks = marks
	}
	return snap
}

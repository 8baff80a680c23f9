package domain

import "time"

// OptionLabels are the fixed answer labels every question carries.
var OptionLabels = [5]string{"A", "B", "C", "D", "E"}

// StageDefinition describes one scored section of the exam.
type StageDefinition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Questions int    `json:"questions"` // quota drawn from the bank
	Minutes   int    `json:"minutes"`   // time budget
}

// Stages returns the fixed stage table shared by every session.
func Stages() []StageDefinition {
	return []StageDefinition{
		{ID: "pu", Name: "Penalaran Umum", Questions: 30, Minutes: 30},
		{ID: "ppu", Name: "Pengetahuan & Pemahaman Umum", Questions: 20, Minutes: 15},
		{ID: "pbm", Name: "Pemahaman Bacaan & Menulis", Questions: 20, Minutes: 25},
		{ID: "pk", Name: "Pengetahuan Kuantitatif", Questions: 15, Minutes: 20},
		{ID: "lbi", Name: "Literasi Bahasa Indonesia", Questions: 30, Minutes: 45},
		{ID: "lbe", Name: "Literasi Bahasa Inggris", Questions: 20, Minutes: 30},
		{ID: "pm", Name: "Penalaran Matematika", Questions: 20, Minutes: 30},
	}
}

// Question is an MCQ item with exactly five labeled options and one correct label.
type Question struct {
	Prompt  string   `json:"prompt"`
	Image   string   `json:"image,omitempty"`
	Options []string `json:"options"` // indexed by OptionLabels
	Correct string   `json:"correct"` // one of OptionLabels
}

// TokenStatus tracks single-use consumption of an access token.
type TokenStatus string

const (
	TokenUnused TokenStatus = "unused"
	TokenUsed   TokenStatus = "used"
)

// AccessToken is one candidate's credential and, after completion, their
// recorded outcome. Score and RemainingSeconds stay nil until the session ends.
type AccessToken struct {
	Code             string      `json:"code"`
	OwnerName        string      `json:"ownerName"`
	CreatedAt        time.Time   `json:"createdAt"`
	Status           TokenStatus `json:"status"`
	Score            *int        `json:"score,omitempty"`
	RemainingSeconds *int        `json:"remainingSeconds,omitempty"`
	LoginAt          *time.Time  `json:"loginAt,omitempty"`
	FinishedAt       *time.Time  `json:"finishedAt,omitempty"`
}

// LeaderboardEntry is one ranked completed outcome.
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	OwnerName        string `json:"ownerName"`
	Score            int    `json:"score"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// Phase enumerates the states a session moves through.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdownToStart"
	PhaseTest      Phase = "test"
	PhaseBreak     Phase = "break"
	PhaseResult    Phase = "result"
)

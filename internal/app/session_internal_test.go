package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utbk-exam-service/internal/domain"
)

func smallPlan() plan {
	stages := []domain.StageDefinition{
		{ID: "pu", Name: "Penalaran Umum", Questions: 2, Minutes: 1},
		{ID: "pk", Name: "Pengetahuan Kuantitatif", Questions: 2, Minutes: 1},
	}
	selection := map[string][]domain.Question{
		"pu": {
			{Prompt: "pu-0", Options: []string{"1", "2", "3", "4", "5"}, Correct: "A"},
			{Prompt: "pu-1", Options: []string{"1", "2", "3", "4", "5"}, Correct: "B"},
		},
		"pk": {
			{Prompt: "pk-0", Options: []string{"1", "2", "3", "4", "5"}, Correct: "C"},
			{Prompt: "pk-1", Options: []string{"1", "2", "3", "4", "5"}, Correct: "D"},
		},
	}
	return plan{stageOrder: stages, selection: selection}
}

func newTestSession(t *testing.T, cfg SessionConfig, onResult func(*Session)) *Session {
	t.Helper()
	session := newSessionWithClock("TOKEN-1", "Alice", smallPlan(), cfg, onResult, time.Now)
	t.Cleanup(session.stop)
	return session
}

// currentTick fires the pending tick deterministically instead of waiting a
// real second; the armed wall-clock timer is invalidated by the generation
// bump inside tick itself.
func currentTick(s *Session) {
	s.mu.Lock()
	gen := s.timerGen
	s.mu.Unlock()
	s.tick(gen)
}

func TestBeginRunsPreparatoryCountdown(t *testing.T) {
	session := newTestSession(t, SessionConfig{PrepareSeconds: 2, BreakSeconds: 5}, nil)
	session.begin()

	snap := session.Snapshot()
	require.Equal(t, domain.PhaseCountdown, snap.Phase)
	require.Equal(t, 2, snap.RemainingSeconds)

	currentTick(session)
	assert.Equal(t, 1, session.Snapshot().RemainingSeconds)

	currentTick(session)
	snap = session.Snapshot()
	assert.Equal(t, domain.PhaseTest, snap.Phase)
	assert.Equal(t, 60, snap.RemainingSeconds)
	assert.Equal(t, 0, snap.QuestionIndex)
}

func TestStageExhaustionEntersBreakThenNextStage(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 2}, nil)
	session.begin()
	require.Equal(t, domain.PhaseTest, session.Snapshot().Phase)

	session.mu.Lock()
	session.remaining = 1
	session.mu.Unlock()

	currentTick(session)
	snap := session.Snapshot()
	require.Equal(t, domain.PhaseBreak, snap.Phase)
	require.Equal(t, 2, snap.BreakSeconds)

	currentTick(session)
	currentTick(session)
	snap = session.Snapshot()
	assert.Equal(t, domain.PhaseTest, snap.Phase)
	assert.Equal(t, 1, snap.StageIndex)
	assert.Equal(t, 0, snap.QuestionIndex)
	assert.Equal(t, 60, snap.RemainingSeconds)
}

func TestFinalStageExhaustionEntersResult(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 0}, nil)
	session.begin()
	require.NoError(t, session.FinishStage()) // stage 1 -> stage 2 (no break configured)
	require.Equal(t, 1, session.Snapshot().StageIndex)

	session.mu.Lock()
	session.remaining = 1
	session.mu.Unlock()
	currentTick(session)

	snap := session.Snapshot()
	require.Equal(t, domain.PhaseResult, snap.Phase)
	require.NotNil(t, snap.Result)
	// nothing answered: 2 stages x 2 questions x -1
	assert.Equal(t, -4, snap.Result.Total)
	assert.Equal(t, 0, snap.Result.RemainingSeconds)
}

func TestAnswerFlagAndNavigation(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 5}, nil)
	session.begin()

	require.NoError(t, session.Answer("C"))
	require.NoError(t, session.Flag(true))
	snap := session.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Equal(t, "C", snap.Question.Chosen)
	assert.True(t, snap.Question.Flagged)

	// overwrite is allowed
	require.NoError(t, session.Answer("A"))
	assert.Equal(t, "A", session.Snapshot().Question.Chosen)

	require.ErrorIs(t, session.Answer("F"), domain.ErrInvalidOption)
	require.ErrorIs(t, session.Select(2), domain.ErrOutOfRange)

	require.NoError(t, session.Next())
	assert.Equal(t, 1, session.Snapshot().QuestionIndex)
	require.NoError(t, session.Next()) // already last, stays put
	assert.Equal(t, 1, session.Snapshot().QuestionIndex)
	require.NoError(t, session.Prev())
	assert.Equal(t, 0, session.Snapshot().QuestionIndex)
}

func TestViolationIsTerminalAndImmutable(t *testing.T) {
	fired := 0
	session := newTestSession(t, SessionConfig{BreakSeconds: 5}, func(*Session) { fired++ })
	session.begin()
	require.NoError(t, session.Answer("A"))

	warning, err := session.ReportSignal(SignalHidden)
	require.NoError(t, err)
	assert.Empty(t, warning)

	snap := session.Snapshot()
	require.Equal(t, domain.PhaseResult, snap.Phase)
	assert.Contains(t, snap.Violation, "left the exam surface")
	require.NotNil(t, snap.Result)
	// +4 for the answered question, -3 for the three unanswered
	assert.Equal(t, 1, snap.Result.Total)

	// latched reason never changes, even for a second signal
	_, _ = session.ReportSignal(SignalFullscreenExit)
	assert.Contains(t, session.Snapshot().Violation, "left the exam surface")

	require.ErrorIs(t, session.Answer("B"), domain.ErrSessionLocked)
	require.ErrorIs(t, session.Flag(true), domain.ErrSessionLocked)
	require.ErrorIs(t, session.Select(1), domain.ErrSessionLocked)
	require.ErrorIs(t, session.FinishStage(), domain.ErrSessionLocked)

	// result hook fires exactly once
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, fired)
}

func TestRestrictedKeySignalsWarnWithoutTerminating(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 5}, nil)
	session.begin()

	warning, err := session.ReportSignal(SignalRestrictedKey)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	warning, err = session.ReportSignal(SignalContextMenu)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	assert.Equal(t, domain.PhaseTest, session.Snapshot().Phase)
	assert.Empty(t, session.Snapshot().Violation)
}

func TestStaleTickIsSuppressedAfterTransition(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 3}, nil)
	session.begin()

	session.mu.Lock()
	staleGen := session.timerGen
	session.mu.Unlock()

	require.NoError(t, session.FinishStage()) // cancels the stage timer
	snap := session.Snapshot()
	require.Equal(t, domain.PhaseBreak, snap.Phase)
	require.Equal(t, 3, snap.BreakSeconds)

	// a tick armed for the finished stage must not touch the break countdown
	session.tick(staleGen)
	assert.Equal(t, 3, session.Snapshot().BreakSeconds)
}

func TestResultSnapshotDetachedFromLaterLeaderboard(t *testing.T) {
	session := newTestSession(t, SessionConfig{BreakSeconds: 0}, nil)
	session.begin()
	require.NoError(t, session.FinishStage())
	require.NoError(t, session.FinishStage())
	require.Equal(t, domain.PhaseResult, session.Snapshot().Phase)

	delivered := session.Snapshot()
	require.NotNil(t, delivered.Result)
	require.False(t, delivered.Result.LeaderboardReady)

	session.setLeaderboard([]domain.LeaderboardEntry{
		{Rank: 1, OwnerName: "Bob", Score: 10},
	}, 3)

	// A frame already handed out must not change retroactively.
	assert.False(t, delivered.Result.LeaderboardReady)
	assert.Equal(t, 0, delivered.Result.Rank)
	assert.Nil(t, delivered.Result.Leaderboard)

	after := session.Snapshot()
	require.NotNil(t, after.Result)
	assert.True(t, after.Result.LeaderboardReady)
	assert.Equal(t, 3, after.Result.Rank)
	require.Len(t, after.Result.Leaderboard, 1)
}

func TestViolationOutsideTestPhaseIsIgnored(t *testing.T) {
	session := newTestSession(t, SessionConfig{PrepareSeconds: 3, BreakSeconds: 5}, nil)
	session.begin()
	require.Equal(t, domain.PhaseCountdown, session.Snapshot().Phase)

	_, err := session.ReportSignal(SignalHidden)
	require.NoError(t, err)
	assert.Empty(t, session.Snapshot().Violation)
	assert.Equal(t, domain.PhaseCountdown, session.Snapshot().Phase)
}

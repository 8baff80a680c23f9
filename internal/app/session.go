package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"utbk-exam-service/internal/domain"
)

// Violation reasons reported on the result screen.
const (
	violationHidden     = "tab switch detected: candidate left the exam surface"
	violationFullscreen = "exited full-screen presentation mode"
)

// Environment signal kinds accepted by ReportSignal.
const (
	SignalHidden         = "hidden"
	SignalFullscreenExit = "fullscreen_exit"
	SignalRestrictedKey  = "restricted_key"
	SignalContextMenu    = "context_menu"
)

// SessionConfig carries the timing constants shared by every session.
type SessionConfig struct {
	PrepareSeconds int
	BreakSeconds   int
}

// Session is one candidate's attempt, from credential redemption to result.
// All state is guarded by one mutex; timer callbacks, integrity signals and
// candidate input each take the lock in turn, so transitions are serialized.
type Session struct {
	id        string
	code      string
	ownerName string
	cfg       SessionConfig
	now       func() time.Time

	mu          sync.RWMutex
	phase       domain.Phase
	stageOrder  []domain.StageDefinition
	selection   map[string][]domain.Question
	stageIndex  int
	questionIdx int
	remaining   int // stage seconds in test, prepare seconds in countdown
	breakLeft   int
	answers     map[domain.AnswerKey]string
	flags       map[domain.AnswerKey]bool
	violation   string

	finishedAt     time.Time
	finalRemaining int
	result         *ResultView
	resultFired    bool
	onResult       func(*Session)

	timer       *time.Timer
	timerGen    int
	subscribers map[chan Snapshot]struct{}
}

func newSession(code, ownerName string, p plan, cfg SessionConfig, onResult func(*Session)) *Session {
	return newSessionWithClock(code, ownerName, p, cfg, onResult, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(code, ownerName string, p plan, cfg SessionConfig, onResult func(*Session), now func() time.Time) *Session {
	return &Session{
		id:          uuid.NewString(),
		code:        code,
		ownerName:   ownerName,
		cfg:         cfg,
		now:         now,
		phase:       domain.PhaseIdle,
		stageOrder:  p.stageOrder,
		selection:   p.selection,
		answers:     make(map[domain.AnswerKey]string),
		flags:       make(map[domain.AnswerKey]bool),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Code returns the token code that opened this session.
func (s *Session) Code() string { return s.code }

// Owner returns the candidate name from the redeemed token.
func (s *Session) Owner() string { return s.ownerName }

// begin moves the session out of idle into the preparatory countdown.
func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseIdle {
		return
	}
	if s.cfg.PrepareSeconds > 0 {
		s.phase = domain.PhaseCountdown
		s.remaining = s.cfg.PrepareSeconds
		s.armTimerLocked()
	} else {
		s.enterStageLocked(0)
	}
	s.broadcastLocked()
}

// armTimerLocked owns exactly one pending tick. Bumping the generation
// invalidates any tick already in flight from a previous phase.
func (s *Session) armTimerLocked() {
	s.timerGen++
	gen := s.timerGen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(time.Second, func() { s.tick(gen) })
}

func (s *Session) cancelTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) tick(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.violation != "" {
		return
	}
	switch s.phase {
	case domain.PhaseCountdown:
		s.remaining--
		if s.remaining <= 0 {
			s.enterStageLocked(0)
		} else {
			s.armTimerLocked()
		}
	case domain.PhaseTest:
		s.remaining--
		if s.remaining <= 0 {
			s.remaining = 0
			s.endStageLocked()
		} else {
			s.armTimerLocked()
		}
	case domain.PhaseBreak:
		s.breakLeft--
		if s.breakLeft <= 0 {
			s.enterStageLocked(s.stageIndex + 1)
		} else {
			s.armTimerLocked()
		}
	default:
		return
	}
	s.broadcastLocked()
}

func (s *Session) enterStageLocked(index int) {
	s.stageIndex = index
	s.questionIdx = 0
	s.remaining = s.stageOrder[index].Minutes * 60
	s.phase = domain.PhaseTest
	s.armTimerLocked()
}

// endStageLocked handles both timer exhaustion and an explicit stage finish.
func (s *Session) endStageLocked() {
	if s.stageIndex >= len(s.stageOrder)-1 {
		s.finishLocked()
		return
	}
	if s.cfg.BreakSeconds <= 0 {
		s.enterStageLocked(s.stageIndex + 1)
		return
	}
	s.phase = domain.PhaseBreak
	s.breakLeft = s.cfg.BreakSeconds
	s.armTimerLocked()
}

func (s *Session) finishLocked() {
	s.cancelTimerLocked()
	s.phase = domain.PhaseResult
	s.finalRemaining = s.remaining
	if s.finalRemaining < 0 {
		s.finalRemaining = 0
	}
	s.finishedAt = s.now()
	score := domain.Score(s.stageOrder, s.selection, s.answers)
	s.result = &ResultView{
		Stages:           s.stageOrder,
		Scores:           score.PerStage,
		Total:            score.Total,
		RemainingSeconds: s.finalRemaining,
	}
	if s.onResult != nil && !s.resultFired {
		s.resultFired = true
		go s.onResult(s)
	}
}

// mutableLocked gates every candidate-driven mutation.
func (s *Session) mutableLocked() error {
	if s.violation != "" {
		return domain.ErrSessionLocked
	}
	if s.phase != domain.PhaseTest {
		return domain.ErrWrongPhase
	}
	return nil
}

// Answer records the chosen option label for the active question.
// Overwriting a previous choice is allowed.
func (s *Session) Answer(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if !validLabel(label) {
		return domain.ErrInvalidOption
	}
	s.answers[s.activeKeyLocked()] = label
	s.broadcastLocked()
	return nil
}

// Flag marks or unmarks the active question as uncertain.
func (s *Session) Flag(flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	key := s.activeKeyLocked()
	if flagged {
		s.flags[key] = true
	} else {
		delete(s.flags, key)
	}
	s.broadcastLocked()
	return nil
}

// Select jumps to a question inside the active stage.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= s.activeStageLocked().Questions {
		return domain.ErrOutOfRange
	}
	s.questionIdx = index
	s.broadcastLocked()
	return nil
}

// Next advances to the following question; at the last question it is a no-op
// (the client sends an explicit finish-stage for the confirm flow).
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if s.questionIdx < s.activeStageLocked().Questions-1 {
		s.questionIdx++
		s.broadcastLocked()
	}
	return nil
}

// Prev steps back one question, stopping at the first.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if s.questionIdx > 0 {
		s.questionIdx--
		s.broadcastLocked()
	}
	return nil
}

// FinishStage ends the active stage early, taking the same transition as
// timer exhaustion.
func (s *Session) FinishStage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.cancelTimerLocked()
	s.endStageLocked()
	s.broadcastLocked()
	return nil
}

// ReportSignal feeds one environment signal into the integrity monitor.
// Visibility loss and full-screen exit latch a terminal violation; restricted
// keys and context-menu attempts only produce the returned warning.
func (s *Session) ReportSignal(kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case SignalHidden:
		s.latchViolationLocked(violationHidden)
		return "", nil
	case SignalFullscreenExit:
		s.latchViolationLocked(violationFullscreen)
		return "", nil
	case SignalRestrictedKey:
		return "screenshots and developer tools are not allowed", nil
	case SignalContextMenu:
		return "right click is disabled during the exam", nil
	default:
		return "", domain.ErrUnknownSignal
	}
}

// latchViolationLocked is terminal: the session jumps straight to its result
// and the reason can never be overwritten.
func (s *Session) latchViolationLocked(reason string) {
	if s.violation != "" || s.phase != domain.PhaseTest {
		return
	}
	s.violation = reason
	s.finishLocked()
	s.broadcastLocked()
}

// stop cancels any pending timer; used when the session is discarded.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
}

// Outcome reports the values the leaderboard compiler persists.
func (s *Session) Outcome() (score, remainingSeconds int, finishedAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return 0, 0, time.Time{}
	}
	return s.result.Total, s.finalRemaining, s.finishedAt
}

// setLeaderboard fills in the ranked standings once the compiler is done.
// A zero rank means unranked; entries may be nil when the query degraded.
func (s *Session) setLeaderboard(entries []domain.LeaderboardEntry, rank int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return
	}
	s.result.Leaderboard = entries
	s.result.Rank = rank
	s.result.LeaderboardReady = true
	s.broadcastLocked()
}

func (s *Session) activeStageLocked() domain.StageDefinition {
	return s.stageOrder[s.stageIndex]
}

func (s *Session) activeKeyLocked() domain.AnswerKey {
	return domain.AnswerKey{StageID: s.activeStageLocked().ID, Question: s.questionIdx}
}

func validLabel(label string) bool {
	for _, l := range domain.OptionLabels {
		if l == label {
			return true
		}
	}
	return false
}

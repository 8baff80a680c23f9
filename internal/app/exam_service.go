package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"utbk-exam-service/internal/domain"
)

// TokenRepository persists access tokens and completed outcomes.
// Consume must be an atomic conditional update: of two concurrent redemptions
// of the same code at most one may succeed.
type TokenRepository interface {
	Find(ctx context.Context, code string) (domain.AccessToken, error)
	Consume(ctx context.Context, code string, loginAt time.Time) error
	RecordOutcome(ctx context.Context, code string, score, remainingSeconds int, finishedAt time.Time) error
	// TopOutcomes returns completed records ordered by score descending,
	// remaining time descending, without ranks assigned.
	TopOutcomes(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	// CountBetter counts completed records that beat the given outcome.
	CountBetter(ctx context.Context, score, remainingSeconds int) (int, error)
}

// QuestionBank reads a stage's question pool (from cache/backing store).
type QuestionBank interface {
	StagePool(ctx context.Context, stageID string) ([]domain.Question, error)
}

// SessionRepository abstracts how live sessions are stored, keyed by token code.
type SessionRepository interface {
	Put(code string, session *Session)
	Get(code string) (*Session, bool)
	Delete(code string)
}

// Config carries the exam constants loaded from configuration.
type Config struct {
	TokenTTL        time.Duration
	PrepareSeconds  int
	BreakSeconds    int
	LeaderboardSize int
}

// DefaultConfig matches the reference deployment: 24h tokens, 5s preparatory
// countdown, 10s breaks, top-10 leaderboard.
func DefaultConfig() Config {
	return Config{
		TokenTTL:        24 * time.Hour,
		PrepareSeconds:  5,
		BreakSeconds:    10,
		LeaderboardSize: 10,
	}
}

// ExamService contains the exam-session use cases.
type ExamService struct {
	tokens   TokenRepository
	bank     QuestionBank
	sessions SessionRepository
	cfg      Config
	planner  *planner
	now      func() time.Time
}

func NewExamService(tokens TokenRepository, bank QuestionBank, sessions SessionRepository, cfg Config) *ExamService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &ExamService{
		tokens:   tokens,
		bank:     bank,
		sessions: sessions,
		cfg:      cfg,
		planner:  newPlanner(),
		now:      time.Now,
	}
}

// Redeem validates and consumes an access token, builds the session plan and
// starts the preparatory countdown. The bank is checked and the plan built
// before the token is consumed, so a deficient bank burns nothing.
func (s *ExamService) Redeem(ctx context.Context, code string) (*Session, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrTokenNotFound
	}

	token, err := s.tokens.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(token.CreatedAt) > s.cfg.TokenTTL {
		return nil, domain.ErrTokenExpired
	}
	if token.Status == domain.TokenUsed {
		return nil, domain.ErrTokenUsed
	}

	stages := domain.Stages()
	pools := make(map[string][]domain.Question, len(stages))
	for _, stage := range stages {
		pool, err := s.bank.StagePool(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("load question bank for stage %s: %w", stage.ID, err)
		}
		pools[stage.ID] = pool
	}

	sessionPlan, err := s.planner.build(stages, pools)
	if err != nil {
		return nil, err
	}

	// Single consumption point; a concurrent redemption loses here.
	if err := s.tokens.Consume(ctx, code, s.now()); err != nil {
		return nil, err
	}

	session := newSession(code, token.OwnerName, sessionPlan, SessionConfig{
		PrepareSeconds: s.cfg.PrepareSeconds,
		BreakSeconds:   s.cfg.BreakSeconds,
	}, s.compileOutcome)
	s.sessions.Put(code, session)
	session.begin()
	return session, nil
}

// Session returns the live session for a token code, if any.
func (s *ExamService) Session(code string) (*Session, bool) {
	return s.sessions.Get(NormalizeCode(code))
}

// Reset discards a session and returns the candidate to the landing state.
// The consumed token stays consumed.
func (s *ExamService) Reset(code string) {
	code = NormalizeCode(code)
	session, ok := s.sessions.Get(code)
	if !ok {
		return
	}
	session.stop()
	s.sessions.Delete(code)
}

// compileOutcome runs once per session, on entry to the result phase.
// Persistence or query failure never blocks the candidate's own score: the
// leaderboard simply degrades to empty and the rank to unranked.
func (s *ExamService) compileOutcome(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	score, remaining, finishedAt := session.Outcome()
	if err := s.tokens.RecordOutcome(ctx, session.Code(), score, remaining, finishedAt); err != nil {
		log.Printf("record outcome for %s: %v", session.Code(), err)
	}

	entries, err := s.tokens.TopOutcomes(ctx, s.cfg.LeaderboardSize)
	if err != nil {
		log.Printf("leaderboard query: %v", err)
		session.setLeaderboard(nil, 0)
		return
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	rank := 0
	if better, err := s.tokens.CountBetter(ctx, score, remaining); err != nil {
		log.Printf("rank query: %v", err)
	} else {
		rank = better + 1
	}
	session.setLeaderboard(entries, rank)
}

// NormalizeCode trims and uppercases a token code; matching is case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCredentialError reports whether err is one of the non-fatal redemption
// failures the candidate can act on.
func IsCredentialError(err error) bool {
	return errors.Is(err, domain.ErrTokenNotFound) ||
		errors.Is(err, domain.ErrTokenExpired) ||
		errors.Is(err, domain.ErrTokenUsed)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"utbk-exam-service/internal/domain"
)

// TokenRepository persists access tokens in Postgres.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Find(ctx context.Context, code string) (domain.AccessToken, error) {
	token := domain.AccessToken{Code: code}
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT owner_name, created_at, status, score, remaining_seconds, login_at, finished_at
		 FROM access_tokens WHERE code=$1`, code).
		Scan(&token.OwnerName, &token.CreatedAt, &status, &token.Score,
			&token.RemainingSeconds, &token.LoginAt, &token.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AccessToken{}, domain.ErrTokenNotFound
	}
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("find token: %w", err)
	}
	token.Status = domain.TokenStatus(status)
	return token, nil
}

// Consume flips a token from unused to used in one conditional update, so of
// two concurrent redemptions at most one ever succeeds.
func (r *TokenRepository) Consume(ctx context.Context, code string, loginAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_tokens SET status='used', login_at=$2 WHERE code=$1 AND status='unused'`,
		code, loginAt)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Distinguish a lost race from a missing token.
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_tokens WHERE code=$1)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if !exists {
		return domain.ErrTokenNotFound
	}
	return domain.ErrTokenUsed
}

// RecordOutcome writes the final score once; the guard on score IS NULL
// keeps a duplicate fire from overwriting a recorded result.
func (r *TokenRepository) RecordOutcome(ctx context.Context, code string, score, remainingSeconds int, finishedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE access_tokens SET score=$2, remaining_seconds=$3, finished_at=$4
		 WHERE code=$1 AND score IS NULL`,
		code, score, remainingSeconds, finishedAt)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (r *TokenRepository) TopOutcomes(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT owner_name, score, remaining_seconds
		 FROM access_tokens WHERE score IS NOT NULL
		 ORDER BY score DESC, remaining_seconds DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.OwnerName, &entry.Score, &entry.RemainingSeconds); err != nil {
			return nil, fmt.Errorf("leaderboard scan: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *TokenRepository) CountBetter(ctx context.Context, score, remainingSeconds int) (int, error) {
	var better int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM access_tokens
		 WHERE score IS NOT NULL AND (score > $1 OR (score = $1 AND remaining_seconds > $2))`,
		score, remainingSeconds).Scan(&better)
	if err != nil {
		return 0, fmt.Errorf("rank query: %w", err)
	}
	return better, nil
}

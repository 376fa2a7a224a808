package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

// TokenRepo — репозиторий correlation-токенов.
type TokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepo создаёт новый TokenRepo.
func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Bind привязывает токен к (кандидат, оценка).
func (r *TokenRepo) Bind(ctx context.Context, t *domain.CorrelationToken) error {
	query := `
		INSERT INTO correlation_tokens (token, candidate_id, evaluation_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		t.Token,
		t.CandidateID,
		t.EvaluationID,
		t.IssuedAt,
		t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("token %s: %w", t.Token, store.ErrAlreadyExists)
	}
	return nil
}

// Resolve возвращает привязку токена.
func (r *TokenRepo) Resolve(ctx context.Context, token string) (*domain.CorrelationToken, error) {
	query := `
		SELECT token, candidate_id, evaluation_id, issued_at, expires_at
		FROM correlation_tokens
		WHERE token = $1
	`
	var t domain.CorrelationToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.CandidateID,
		&t.EvaluationID,
		&t.IssuedAt,
		&t.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("token: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return &t, nil
}

// DeleteExpired удаляет истёкшие токены, возвращает их количество.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM correlation_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return int(result.RowsAffected()), nil
}

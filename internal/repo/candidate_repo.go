package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

const candidateColumns = `id, name, email, job_id, resume_ref, state, stage, attempt,
	       work_status, lease_owner, lease_expires_at, cancel_requested,
	       error, version, submitted_at, updated_at`

// CandidateRepo — репозиторий кандидатов.
type CandidateRepo struct {
	pool *pgxpool.Pool
}

// NewCandidateRepo создаёт новый CandidateRepo.
func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

// Create создаёт кандидата.
func (r *CandidateRepo) Create(ctx context.Context, c *domain.Candidate) error {
	query := `
		INSERT INTO candidates (id, name, email, job_id, resume_ref, state, stage, attempt,
		                        work_status, cancel_requested, error, version, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		c.JobID,
		c.ResumeRef,
		c.State,
		nullString(string(c.Stage)),
		c.Attempt,
		c.WorkStatus,
		c.CancelRequested,
		nullString(c.Error),
		c.Version,
		c.SubmittedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s: %w", c.ID, store.ErrAlreadyExists)
	}
	return nil
}

// Get возвращает кандидата по ID.
func (r *CandidateRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	return scanCandidate(r.pool.QueryRow(ctx, query, id))
}

// Update сохраняет кандидата с compare-and-swap по версии.
func (r *CandidateRepo) Update(ctx context.Context, c *domain.Candidate) error {
	query := `
		UPDATE candidates
		SET state = $3, stage = $4, attempt = $5, work_status = $6,
		    lease_owner = $7, lease_expires_at = $8, cancel_requested = $9,
		    error = $10, version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Version,
		c.State,
		nullString(string(c.Stage)),
		c.Attempt,
		c.WorkStatus,
		c.LeaseOwner,
		c.LeaseExpiresAt,
		c.CancelRequested,
		nullString(c.Error),
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо кандидата нет, либо версия устарела
		if _, err := r.Get(ctx, c.ID); err != nil {
			return err
		}
		return fmt.Errorf("candidate %s: stale version %d: %w", c.ID, c.Version, store.ErrConflict)
	}

	c.Version++
	return nil
}

// AcquireLease захватывает лизу на кандидата, если активной лизы нет.
func (r *CandidateRepo) AcquireLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Candidate, error) {
	now := time.Now()
	query := `
		UPDATE candidates
		SET lease_owner = $2, lease_expires_at = $3, work_status = $4,
		    version = version + 1, updated_at = $5
		WHERE id = $1 AND (lease_owner IS NULL OR lease_expires_at <= $5)
		RETURNING ` + candidateColumns
	c, err := scanCandidate(r.pool.QueryRow(ctx, query,
		id, owner, now.Add(ttl), domain.WorkQueued, now,
	))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// Условие не сработало: кандидата нет или лиза занята
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("candidate %s is leased: %w", id, store.ErrConflict)
}

// ReleaseLease снимает лизу, если ей владеет owner.
// Уже снятая лиза (терминальный переход) — no-op.
func (r *CandidateRepo) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	query := `
		UPDATE candidates
		SET lease_owner = NULL, lease_expires_at = NULL, work_status = $3,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND lease_owner = $2
	`
	result, err := r.pool.Exec(ctx, query, id, owner, domain.WorkIdle)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.LeaseOwner == nil {
		return nil
	}
	return fmt.Errorf("candidate %s not leased by %s: %w", id, owner, store.ErrConflict)
}

// RequestCancel взводит флаг отмены обработки.
func (r *CandidateRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE candidates
		SET cancel_requested = TRUE, version = version + 1, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListQueued возвращает кандидатов в статусе QUEUED (polling fallback).
func (r *CandidateRepo) ListQueued(ctx context.Context, limit int) ([]domain.Candidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM candidates
		WHERE work_status = $1
		ORDER BY submitted_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, domain.WorkQueued, limit)
}

// ListExpiredLeases возвращает кандидатов с истёкшей лизой (для janitor).
func (r *CandidateRepo) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]domain.Candidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM candidates
		WHERE lease_owner IS NOT NULL AND lease_expires_at < $1
		ORDER BY lease_expires_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// --- Helpers ---

func (r *CandidateRepo) list(ctx context.Context, query string, args ...any) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// scanCandidate сканирует одну строку в Candidate.
func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var c domain.Candidate
	var stage, candidateError *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.JobID,
		&c.ResumeRef,
		&c.State,
		&stage,
		&c.Attempt,
		&c.WorkStatus,
		&c.LeaseOwner,
		&c.LeaseExpiresAt,
		&c.CancelRequested,
		&candidateError,
		&c.Version,
		&c.SubmittedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("candidate: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}

	if stage != nil {
		c.Stage = domain.Stage(*stage)
	}
	if candidateError != nil {
		c.Error = *candidateError
	}
	return &c, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

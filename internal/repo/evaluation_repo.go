package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

// EvaluationRepo — репозиторий оценок (одна на кандидата).
type EvaluationRepo struct {
	pool *pgxpool.Pool
}

// NewEvaluationRepo создаёт новый EvaluationRepo.
func NewEvaluationRepo(pool *pgxpool.Pool) *EvaluationRepo {
	return &EvaluationRepo{pool: pool}
}

// Create создаёт оценку. Уникальность по candidate_id обеспечивает
// one-to-one инвариант на уровне БД.
func (r *EvaluationRepo) Create(ctx context.Context, e *domain.Evaluation) error {
	analysisJSON, err := json.Marshal(e.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	degradationsJSON, err := json.Marshal(e.Degradations)
	if err != nil {
		return fmt.Errorf("marshal degradations: %w", err)
	}

	query := `
		INSERT INTO evaluations (id, candidate_id, overall_score, recommendation, analysis,
		                         degradations, notification_sent, report_ref, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (candidate_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CandidateID,
		e.OverallScore,
		e.Recommendation,
		analysisJSON,
		degradationsJSON,
		e.NotificationSent,
		nullString(e.ReportRef),
		nullString(e.Model),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("evaluation for candidate %s: %w", e.CandidateID, store.ErrAlreadyExists)
	}
	return nil
}

// GetByCandidate возвращает оценку кандидата.
func (r *EvaluationRepo) GetByCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.Evaluation, error) {
	query := `
		SELECT id, candidate_id, overall_score, recommendation, analysis,
		       degradations, notification_sent, report_ref, model, created_at
		FROM evaluations
		WHERE candidate_id = $1
	`
	return scanEvaluation(r.pool.QueryRow(ctx, query, candidateID))
}

// MarkNotified переводит notification_sent false→true ровно один раз.
func (r *EvaluationRepo) MarkNotified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE evaluations
		SET notification_sent = TRUE
		WHERE id = $1 AND notification_sent = FALSE
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM evaluations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check evaluation: %w", err)
		}
		if !exists {
			return fmt.Errorf("evaluation %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("evaluation %s already notified: %w", id, store.ErrConflict)
	}
	return nil
}

// SetReportRef записывает ссылку на сгенерированный документ.
func (r *EvaluationRepo) SetReportRef(ctx context.Context, id uuid.UUID, ref string) error {
	query := `UPDATE evaluations SET report_ref = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("set report ref: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("evaluation %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// scanEvaluation сканирует одну строку в Evaluation.
func scanEvaluation(row pgx.Row) (*domain.Evaluation, error) {
	var e domain.Evaluation
	var analysisJSON, degradationsJSON []byte
	var reportRef, model *string

	err := row.Scan(
		&e.ID,
		&e.CandidateID,
		&e.OverallScore,
		&e.Recommendation,
		&analysisJSON,
		&degradationsJSON,
		&e.NotificationSent,
		&reportRef,
		&model,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("evaluation: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}

	if analysisJSON != nil {
		if err := json.Unmarshal(analysisJSON, &e.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
	}
	if degradationsJSON != nil {
		if err := json.Unmarshal(degradationsJSON, &e.Degradations); err != nil {
			return nil, fmt.Errorf("unmarshal degradations: %w", err)
		}
	}
	if reportRef != nil {
		e.ReportRef = *reportRef
	}
	if model != nil {
		e.Model = *model
	}
	return &e, nil
}

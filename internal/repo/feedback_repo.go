package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

const feedbackColumns = `id, candidate_id, evaluation_id, stakeholder_id, stakeholder_name,
	       stakeholder_role, decision, comment, message_id, received_at,
	       post_completion, conflicting`

// FeedbackRepo — append-only репозиторий решений заинтересованных лиц.
type FeedbackRepo struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepo создаёт новый FeedbackRepo.
func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

// Append добавляет запись. Уникальность message_id обеспечивает
// дедупликацию повторных доставок на уровне БД.
func (r *FeedbackRepo) Append(ctx context.Context, f *domain.StakeholderFeedback) error {
	query := `
		INSERT INTO stakeholder_feedback (id, candidate_id, evaluation_id, stakeholder_id,
		                                  stakeholder_name, stakeholder_role, decision, comment,
		                                  message_id, received_at, post_completion, conflicting)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		f.ID,
		f.CandidateID,
		f.EvaluationID,
		f.StakeholderID,
		nullString(f.StakeholderName),
		nullString(f.StakeholderRole),
		f.Decision,
		nullString(f.Comment),
		f.MessageID,
		f.ReceivedAt,
		f.PostCompletion,
		f.Conflicting,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("feedback message %s: %w", f.MessageID, store.ErrAlreadyExists)
	}
	return nil
}

// GetByMessageID возвращает запись по идентификатору сообщения провайдера.
func (r *FeedbackRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.StakeholderFeedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM stakeholder_feedback WHERE message_id = $1`
	return scanFeedback(r.pool.QueryRow(ctx, query, messageID))
}

// History возвращает все записи по кандидату в порядке получения.
func (r *FeedbackRepo) History(ctx context.Context, candidateID uuid.UUID) ([]domain.StakeholderFeedback, error) {
	query := `
		SELECT ` + feedbackColumns + `
		FROM stakeholder_feedback
		WHERE candidate_id = $1
		ORDER BY received_at ASC
	`
	rows, err := r.pool.Query(ctx, query, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.StakeholderFeedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// scanFeedback сканирует одну строку в StakeholderFeedback.
func scanFeedback(row pgx.Row) (*domain.StakeholderFeedback, error) {
	var f domain.StakeholderFeedback
	var name, role, comment *string

	err := row.Scan(
		&f.ID,
		&f.CandidateID,
		&f.EvaluationID,
		&f.StakeholderID,
		&name,
		&role,
		&f.Decision,
		&comment,
		&f.MessageID,
		&f.ReceivedAt,
		&f.PostCompletion,
		&f.Conflicting,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("feedback: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback: %w", err)
	}

	if name != nil {
		f.StakeholderName = *name
	}
	if role != nil {
		f.StakeholderRole = *role
	}
	if comment != nil {
		f.Comment = *comment
	}
	return &f, nil
}

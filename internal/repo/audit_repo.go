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

// AuditRepo — репозиторий append-only журнала попыток.
//
// Записи только вставляются; UPDATE и DELETE по таблице audit_entries
// не выполняются никогда.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo создаёт новый AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append добавляет запись журнала.
func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEntry) error {
	outputJSON, err := json.Marshal(e.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		INSERT INTO audit_entries (id, candidate_id, stage, attempt, started_at, finished_at,
		                           outcome, error, fingerprint, output, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.CandidateID,
		e.Stage,
		e.Attempt,
		e.StartedAt,
		e.FinishedAt,
		e.Outcome,
		nullString(e.Error),
		e.Fingerprint,
		outputJSON,
		nullString(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History возвращает полную хронологию по кандидату.
func (r *AuditRepo) History(ctx context.Context, candidateID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, candidate_id, stage, attempt, started_at, finished_at,
		       outcome, error, fingerprint, output, detail
		FROM audit_entries
		WHERE candidate_id = $1
		ORDER BY started_at ASC, attempt ASC
	`
	rows, err := r.pool.Query(ctx, query, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LastSuccess возвращает последнюю успешную попытку стадии с совпадающим
// fingerprint входа (идемпотентный гейт).
func (r *AuditRepo) LastSuccess(ctx context.Context, candidateID uuid.UUID, stage domain.Stage, fingerprint string) (*domain.AuditEntry, error) {
	query := `
		SELECT id, candidate_id, stage, attempt, started_at, finished_at,
		       outcome, error, fingerprint, output, detail
		FROM audit_entries
		WHERE candidate_id = $1 AND stage = $2 AND fingerprint = $3 AND outcome = $4
		ORDER BY finished_at DESC
		LIMIT 1
	`
	return scanAuditEntry(r.pool.QueryRow(ctx, query, candidateID, stage, fingerprint, domain.OutcomeSuccess))
}

// scanAuditEntry сканирует одну строку в AuditEntry.
func scanAuditEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	var outputJSON []byte
	var entryError, detail *string

	err := row.Scan(
		&e.ID,
		&e.CandidateID,
		&e.Stage,
		&e.Attempt,
		&e.StartedAt,
		&e.FinishedAt,
		&e.Outcome,
		&entryError,
		&e.Fingerprint,
		&outputJSON,
		&detail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("audit entry: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &e.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if entryError != nil {
		e.Error = *entryError
	}
	if detail != nil {
		e.Detail = *detail
	}
	return &e, nil
}

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

// JobRepo — репозиторий описаний вакансий.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create сохраняет описание вакансии.
func (r *JobRepo) Create(ctx context.Context, j *domain.JobDescription) error {
	query := `
		INSERT INTO jobs (id, title, description, required_skills, nice_to_have_skills, experience_years)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		j.ID,
		j.Title,
		j.Description,
		j.RequiredSkills,
		j.NiceToHaveSkills,
		j.ExperienceYears,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", j.ID, store.ErrAlreadyExists)
	}
	return nil
}

// Get возвращает описание вакансии по идентификатору.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.JobDescription, error) {
	query := `
		SELECT id, title, description, required_skills, nice_to_have_skills, experience_years
		FROM jobs
		WHERE id = $1
	`
	var j domain.JobDescription
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID,
		&j.Title,
		&j.Description,
		&j.RequiredSkills,
		&j.NiceToHaveSkills,
		&j.ExperienceYears,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

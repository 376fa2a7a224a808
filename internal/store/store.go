// Package store определяет интерфейсы хранилища Kadra и их in-memory
// реализацию.
//
// Конвейер, reconciler и API работают только с этими интерфейсами;
// конкретное durable-хранилище (Postgres в internal/repo) — деталь
// развёртывания. In-memory реализация используется в тестах и в режиме
// разработки без БД.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// Общие ошибки хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict — конкурентный конфликт: несовпадение версии при
	// compare-and-swap или попытка захватить занятую лизу.
	ErrConflict = errors.New("conflict")
)

// Candidates — хранилище кандидатов.
//
// Update выполняет compare-and-swap по Candidate.Version: обновление с
// устаревшей версией отклоняется с ErrConflict. Лиза живёт в записи
// кандидата, поэтому взаимное исключение переживает рестарт процесса.
type Candidates interface {
	Create(ctx context.Context, c *domain.Candidate) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Candidate, error)

	// Update сохраняет кандидата, если его Version совпадает с хранимой;
	// при успехе инкрементирует Version в записи и в переданной структуре.
	Update(ctx context.Context, c *domain.Candidate) error

	// AcquireLease захватывает лизу на кандидата для owner с TTL.
	// Возвращает ErrConflict, если активная лиза уже есть.
	AcquireLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Candidate, error)

	// ReleaseLease снимает лизу, если ей владеет owner.
	ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error

	// RequestCancel взводит флаг отмены. Текущая попытка стадии доработает,
	// после чего оркестратор увидит флаг вместо перехода к следующей стадии.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ListQueued возвращает кандидатов со статусом QUEUED (polling fallback).
	ListQueued(ctx context.Context, limit int) ([]domain.Candidate, error)

	// ListExpiredLeases возвращает кандидатов с истёкшей лизой (для janitor).
	ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]domain.Candidate, error)
}

// AuditLog — append-only журнал попыток выполнения стадий.
type AuditLog interface {
	// Append добавляет запись. Записи никогда не обновляются и не удаляются.
	Append(ctx context.Context, e *domain.AuditEntry) error

	// History возвращает полную хронологию по кандидату,
	// упорядоченную по (stage-порядку подачи, attempt).
	History(ctx context.Context, candidateID uuid.UUID) ([]domain.AuditEntry, error)

	// LastSuccess возвращает последнюю успешную попытку стадии с совпадающим
	// fingerprint входа (идемпотентный гейт). ErrNotFound, если такой нет.
	LastSuccess(ctx context.Context, candidateID uuid.UUID, stage domain.Stage, fingerprint string) (*domain.AuditEntry, error)
}

// Evaluations — хранилище оценок.
type Evaluations interface {
	// Create создаёт оценку. ErrAlreadyExists, если у кандидата она уже есть.
	Create(ctx context.Context, e *domain.Evaluation) error

	GetByCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.Evaluation, error)

	// MarkNotified переводит NotificationSent false→true.
	// ErrConflict, если флаг уже взведён: переход происходит ровно один раз.
	MarkNotified(ctx context.Context, id uuid.UUID) error

	// SetReportRef записывает ссылку на сгенерированный документ.
	SetReportRef(ctx context.Context, id uuid.UUID, ref string) error
}

// Tokens — хранилище correlation-токенов.
type Tokens interface {
	// Bind привязывает токен к (кандидат, оценка). Токен уникален.
	Bind(ctx context.Context, t *domain.CorrelationToken) error

	// Resolve возвращает привязку токена. ErrNotFound для неизвестного.
	Resolve(ctx context.Context, token string) (*domain.CorrelationToken, error)

	// DeleteExpired удаляет истёкшие токены, возвращает их количество.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Feedback — append-only хранилище решений заинтересованных лиц.
type Feedback interface {
	// Append добавляет запись. ErrAlreadyExists при повторном MessageID.
	Append(ctx context.Context, f *domain.StakeholderFeedback) error

	GetByMessageID(ctx context.Context, messageID string) (*domain.StakeholderFeedback, error)

	// History возвращает все записи по кандидату в порядке получения.
	History(ctx context.Context, candidateID uuid.UUID) ([]domain.StakeholderFeedback, error)
}

// Jobs — хранилище описаний вакансий.
type Jobs interface {
	Create(ctx context.Context, j *domain.JobDescription) error
	Get(ctx context.Context, id uuid.UUID) (*domain.JobDescription, error)
}

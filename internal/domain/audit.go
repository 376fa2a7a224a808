package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry — неизменяемая запись одной попытки выполнения стадии.
//
// Журнал append-only: записи никогда не обновляются и не удаляются,
// упорядочены по (candidate, stage, attempt). Журнал — единственный
// источник истины для решений о retry и идемпотентности; оркестратор
// не доверяет состоянию в памяти.
type AuditEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// CandidateID — ссылка на кандидата.
	CandidateID uuid.UUID `json:"candidate_id"`

	// Stage — имя стадии.
	Stage Stage `json:"stage"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// StartedAt — время начала попытки.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения попытки.
	FinishedAt time.Time `json:"finished_at"`

	// Outcome — исход попытки.
	Outcome Outcome `json:"outcome"`

	// Error — детали ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// Fingerprint — hex-хэш входа стадии. Используется идемпотентным гейтом:
	// повторный запуск с тем же входом переиспользует записанный Output
	// вместо повторного выполнения (защита от двойных side effects).
	Fingerprint string `json:"fingerprint"`

	// Output — записанный результат успешной попытки (для переиспользования).
	Output map[string]any `json:"output,omitempty"`

	// Detail — человекочитаемое описание исхода.
	Detail string `json:"detail,omitempty"`
}

// Duration возвращает продолжительность попытки.
func (e *AuditEntry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate — единица работы: одно поданное резюме, проходящее через конвейер.
//
// Candidate мутируется только оркестратором и административными командами
// (Reprocess, Abort). Удаляется только явно, никогда логикой конвейера.
//
// Поле Version — счётчик оптимистичной блокировки: каждое обновление записи
// выполняется с проверкой версии (compare-and-swap), так что устаревшее
// конкурентное обновление отклоняется, а читатели никогда не видят частично
// обновлённую пару (state, stage).
type Candidate struct {
	// ID — уникальный идентификатор кандидата.
	ID uuid.UUID `json:"id"`

	// Name — имя кандидата.
	Name string `json:"name"`

	// Email — контактный email.
	Email string `json:"email"`

	// JobID — ссылка на описание вакансии, по которой идёт оценка.
	JobID uuid.UUID `json:"job_id"`

	// ResumeRef — ссылка на загруженный документ резюме в хранилище.
	ResumeRef string `json:"resume_ref"`

	// State — текущее состояние жизненного цикла.
	State CandidateState `json:"state"`

	// Stage — текущая (или последняя выполнявшаяся) стадия.
	Stage Stage `json:"stage,omitempty"`

	// Attempt — номер попытки текущей стадии (начиная с 1).
	Attempt int `json:"attempt"`

	// WorkStatus — владеет ли кандидатом воркер (ортогонально State).
	WorkStatus WorkStatus `json:"work_status"`

	// LeaseOwner — идентификатор воркера, владеющего лизой. Nil, если лизы нет.
	LeaseOwner *string `json:"lease_owner,omitempty"`

	// LeaseExpiresAt — срок действия лизы. Лиза хранится в записи кандидата,
	// а не в памяти процесса, поэтому переживает рестарт.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	// CancelRequested — запрошена ли отмена обработки. Оркестратор проверяет
	// флаг между попытками стадий и не начинает следующую стадию.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// Error — причина терминального FAILED.
	Error string `json:"error,omitempty"`

	// Version — версия записи для compare-and-swap обновлений.
	Version int64 `json:"version"`

	// SubmittedAt — время подачи резюме.
	SubmittedAt time.Time `json:"submitted_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCandidate создаёт кандидата в состоянии SUBMITTED.
func NewCandidate(name, email string, jobID uuid.UUID, resumeRef string) *Candidate {
	now := time.Now()
	return &Candidate{
		ID:          uuid.New(),
		Name:        name,
		Email:       email,
		JobID:       jobID,
		ResumeRef:   resumeRef,
		State:       StateSubmitted,
		WorkStatus:  WorkIdle,
		Version:     1,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// IsLeased возвращает true, если лиза захвачена и ещё не истекла.
func (c *Candidate) IsLeased(now time.Time) bool {
	return c.LeaseOwner != nil && c.LeaseExpiresAt != nil && now.Before(*c.LeaseExpiresAt)
}

// EnterStage переводит кандидата в состояние выполнения стадии.
// Возвращает false, если переход из текущего состояния нелегален.
func (c *Candidate) EnterStage(stage Stage) bool {
	target := StateFor(stage)
	if !CanTransition(c.State, target) {
		return false
	}
	c.State = target
	c.Stage = stage
	c.Attempt = 0
	c.UpdatedAt = time.Now()
	return true
}

// MarkCompleted переводит кандидата в COMPLETED и снимает лизу.
func (c *Candidate) MarkCompleted() bool {
	if !CanTransition(c.State, StateCompleted) {
		return false
	}
	c.State = StateCompleted
	c.WorkStatus = WorkIdle
	c.releaseLease()
	c.UpdatedAt = time.Now()
	return true
}

// MarkFailed переводит кандидата в FAILED с причиной и снимает лизу.
func (c *Candidate) MarkFailed(cause string) bool {
	if !CanTransition(c.State, StateFailed) {
		return false
	}
	c.State = StateFailed
	c.WorkStatus = WorkIdle
	c.Error = cause
	c.releaseLease()
	c.UpdatedAt = time.Now()
	return true
}

// ResetForReprocess возвращает кандидата из FAILED в SUBMITTED.
// Вызывается только административной командой Reprocess.
func (c *Candidate) ResetForReprocess() bool {
	if !CanTransition(c.State, StateSubmitted) {
		return false
	}
	c.State = StateSubmitted
	c.Stage = ""
	c.Attempt = 0
	c.Error = ""
	c.CancelRequested = false
	c.UpdatedAt = time.Now()
	return true
}

func (c *Candidate) releaseLease() {
	c.LeaseOwner = nil
	c.LeaseExpiresAt = nil
}

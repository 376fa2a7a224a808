package domain

import (
	"time"

	"github.com/google/uuid"
)

// CorrelationToken — привязка непрозрачного токена к (кандидат, оценка).
//
// Токен чеканится при отправке уведомления и является единственным
// механизмом атрибуции inbound feedback. Сопоставление по имени в свободном
// тексте не используется никогда: оно ведёт к ложной атрибуции, когда
// заинтересованное лицо отвечает не в тот тред или пересылает сообщение.
type CorrelationToken struct {
	// Token — непрозрачный идентификатор (uuid в строковой форме).
	Token string `json:"token"`

	// CandidateID — кандидат, к которому привязан токен.
	CandidateID uuid.UUID `json:"candidate_id"`

	// EvaluationID — оценка, к которой привязан токен.
	EvaluationID uuid.UUID `json:"evaluation_id"`

	// IssuedAt — время чеканки.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt — срок действия. Истёкший токен отклоняется.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired проверяет, истёк ли токен.
func (t *CorrelationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// StakeholderFeedback — одно решение заинтересованного лица по кандидату.
//
// Append-only: записи никогда не перезаписываются, несколько записей на
// кандидата — ожидаемая ситуация. Feedback никогда не переоткрывает конвейер
// и не мутирует записанную рекомендацию Evaluation.
type StakeholderFeedback struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// CandidateID — кандидат, к которому относится feedback.
	CandidateID uuid.UUID `json:"candidate_id"`

	// EvaluationID — оценка, через токен которой пришёл feedback.
	EvaluationID uuid.UUID `json:"evaluation_id"`

	// StakeholderID — идентификатор заинтересованного лица у провайдера
	// сообщений (например, Telegram user id).
	StakeholderID string `json:"stakeholder_id"`

	// StakeholderName — отображаемое имя (для представления, не для атрибуции).
	StakeholderName string `json:"stakeholder_name,omitempty"`

	// StakeholderRole — роль заинтересованного лица (hiring_manager,
	// recruiter, interviewer). Используется политиками агрегации.
	StakeholderRole string `json:"stakeholder_role,omitempty"`

	// Decision — решение: interview, decline или comment.
	Decision Decision `json:"decision"`

	// Comment — свободный текст.
	Comment string `json:"comment,omitempty"`

	// MessageID — идентификатор inbound-сообщения у провайдера.
	// Уникален в хранилище: повторная доставка того же сообщения — no-op.
	MessageID string `json:"message_id"`

	// ReceivedAt — время получения.
	ReceivedAt time.Time `json:"received_at"`

	// PostCompletion — feedback пришёл после терминального состояния кандидата.
	PostCompletion bool `json:"post_completion,omitempty"`

	// Conflicting — решение расходится с записанной рекомендацией Evaluation.
	Conflicting bool `json:"conflicting,omitempty"`
}

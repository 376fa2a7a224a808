package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// Candidate DTOs

// SubmitCandidateRequest — запрос на подачу резюме.
type SubmitCandidateRequest struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	JobID     uuid.UUID `json:"job_id"`
	ResumeRef string    `json:"resume_ref"`
}

// ReprocessRequest — запрос на повторную обработку.
type ReprocessRequest struct {
	// Force — игнорировать идемпотентные гейты и доставить
	// уведомление заново.
	Force bool `json:"force,omitempty"`
}

// CandidateResponse — ответ с кандидатом.
type CandidateResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	JobID           uuid.UUID `json:"job_id"`
	ResumeRef       string    `json:"resume_ref"`
	State           string    `json:"state"`
	Stage           string    `json:"stage,omitempty"`
	Attempt         int       `json:"attempt,omitempty"`
	WorkStatus      string    `json:"work_status"`
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	Error           string    `json:"error,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CandidateFromDomain конвертирует domain.Candidate в CandidateResponse.
func CandidateFromDomain(c *domain.Candidate) CandidateResponse {
	return CandidateResponse{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		JobID:           c.JobID,
		ResumeRef:       c.ResumeRef,
		State:           string(c.State),
		Stage:           string(c.Stage),
		Attempt:         c.Attempt,
		WorkStatus:      string(c.WorkStatus),
		CancelRequested: c.CancelRequested,
		Error:           c.Error,
		SubmittedAt:     c.SubmittedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// Audit DTOs

// AuditEntryResponse — одна запись журнала попыток.
type AuditEntryResponse struct {
	ID          uuid.UUID      `json:"id"`
	Stage       string         `json:"stage"`
	Attempt     int            `json:"attempt"`
	Outcome     string         `json:"outcome"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	DurationMS  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	Fingerprint string         `json:"fingerprint"`
	Output      map[string]any `json:"output,omitempty"`
	Detail      string         `json:"detail,omitempty"`
}

// AuditEntryFromDomain конвертирует domain.AuditEntry в AuditEntryResponse.
func AuditEntryFromDomain(e domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
		Stage:       string(e.Stage),
		Attempt:     e.Attempt,
		Outcome:     string(e.Outcome),
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		DurationMS:  e.Duration().Milliseconds(),
		Error:       e.Error,
		Fingerprint: e.Fingerprint,
		Output:      e.Output,
		Detail:      e.Detail,
	}
}

// Evaluation DTOs

// EvaluationResponse — ответ с AI-оценкой кандидата.
type EvaluationResponse struct {
	ID               uuid.UUID       `json:"id"`
	CandidateID      uuid.UUID       `json:"candidate_id"`
	OverallScore     int             `json:"overall_score"`
	Recommendation   string          `json:"recommendation"`
	Analysis         domain.Analysis `json:"analysis"`
	Degradations     []string        `json:"degradations,omitempty"`
	NotificationSent bool            `json:"notification_sent"`
	ReportRef        string          `json:"report_ref,omitempty"`
	Model            string          `json:"model,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EvaluationFromDomain конвертирует domain.Evaluation в EvaluationResponse.
func EvaluationFromDomain(e *domain.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:               e.ID,
		CandidateID:      e.CandidateID,
		OverallScore:     e.OverallScore,
		Recommendation:   string(e.Recommendation),
		Analysis:         e.Analysis,
		Degradations:     e.Degradations,
		NotificationSent: e.NotificationSent,
		ReportRef:        e.ReportRef,
		Model:            e.Model,
		CreatedAt:        e.CreatedAt,
	}
}

// Job DTOs

// CreateJobRequest — запрос на создание вакансии.
type CreateJobRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	RequiredSkills   []string `json:"required_skills"`
	NiceToHaveSkills []string `json:"nice_to_have_skills,omitempty"`
	ExperienceYears  int      `json:"experience_years"`
}

// JobResponse — ответ с вакансией.
type JobResponse struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	RequiredSkills   []string  `json:"required_skills"`
	NiceToHaveSkills []string  `json:"nice_to_have_skills,omitempty"`
	ExperienceYears  int       `json:"experience_years"`
}

// JobFromDomain конвертирует domain.JobDescription в JobResponse.
func JobFromDomain(j *domain.JobDescription) JobResponse {
	return JobResponse{
		ID:               j.ID,
		Title:            j.Title,
		Description:      j.Description,
		RequiredSkills:   j.RequiredSkills,
		NiceToHaveSkills: j.NiceToHaveSkills,
		ExperienceYears:  j.ExperienceYears,
	}
}

// Feedback DTOs

// SubmitFeedbackRequest — inbound-сообщение от провайдера (webhook).
type SubmitFeedbackRequest struct {
	Token           string `json:"token"`
	MessageID       string `json:"message_id"`
	StakeholderID   string `json:"stakeholder_id"`
	StakeholderName string `json:"stakeholder_name,omitempty"`
	StakeholderRole string `json:"stakeholder_role,omitempty"`
	Decision        string `json:"decision"`
	Comment         string `json:"comment,omitempty"`
}

// FeedbackResponse — записанный feedback.
type FeedbackResponse struct {
	ID              uuid.UUID `json:"id"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	StakeholderID   string    `json:"stakeholder_id"`
	StakeholderName string    `json:"stakeholder_name,omitempty"`
	StakeholderRole string    `json:"stakeholder_role,omitempty"`
	Decision        string    `json:"decision"`
	Comment         string    `json:"comment,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
	PostCompletion  bool      `json:"post_completion,omitempty"`
	Conflicting     bool      `json:"conflicting,omitempty"`
}

// FeedbackFromDomain конвертирует domain.StakeholderFeedback в FeedbackResponse.
func FeedbackFromDomain(f *domain.StakeholderFeedback) FeedbackResponse {
	return FeedbackResponse{
		ID:              f.ID,
		CandidateID:     f.CandidateID,
		StakeholderID:   f.StakeholderID,
		StakeholderName: f.StakeholderName,
		StakeholderRole: f.StakeholderRole,
		Decision:        string(f.Decision),
		Comment:         f.Comment,
		ReceivedAt:      f.ReceivedAt,
		PostCompletion:  f.PostCompletion,
		Conflicting:     f.Conflicting,
	}
}

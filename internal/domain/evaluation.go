package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobDescription — требования вакансии, против которых оценивается кандидат.
//
// Read-only вход стадии ai_evaluation.
type JobDescription struct {
	// ID — уникальный идентификатор вакансии.
	ID uuid.UUID `json:"id"`

	// Title — название позиции.
	Title string `json:"title"`

	// Description — описание вакансии.
	Description string `json:"description"`

	// RequiredSkills — обязательные навыки.
	RequiredSkills []string `json:"required_skills"`

	// NiceToHaveSkills — желательные навыки.
	NiceToHaveSkills []string `json:"nice_to_have_skills,omitempty"`

	// ExperienceYears — требуемый опыт в годах.
	ExperienceYears int `json:"experience_years"`
}

// Evaluation — результат AI-оценки кандидата.
//
// Инварианты:
//   - не более одной Evaluation на кандидата;
//   - создаётся только успешной стадией ai_evaluation;
//   - NotificationSent переходит false→true ровно один раз.
type Evaluation struct {
	// ID — уникальный идентификатор оценки.
	ID uuid.UUID `json:"id"`

	// CandidateID — ссылка на кандидата (one-to-one).
	CandidateID uuid.UUID `json:"candidate_id"`

	// OverallScore — итоговый балл 1–10.
	OverallScore int `json:"overall_score"`

	// Recommendation — interview или decline.
	Recommendation Recommendation `json:"recommendation"`

	// Analysis — структурированный разбор от модели.
	Analysis Analysis `json:"analysis"`

	// Degradations — причины деградации конвейера (например,
	// "profile_unavailable", если профиль не удалось загрузить).
	Degradations []string `json:"degradations,omitempty"`

	// NotificationSent — отправлено ли уведомление по этой оценке.
	// Гейтит повторную доставку при reprocess.
	NotificationSent bool `json:"notification_sent"`

	// ReportRef — ссылка на сгенерированный документ с оценкой.
	ReportRef string `json:"report_ref,omitempty"`

	// Model — имя AI-модели, выполнившей оценку.
	Model string `json:"model,omitempty"`

	// CreatedAt — время создания оценки.
	CreatedAt time.Time `json:"created_at"`
}

// Analysis — структурированный разбор кандидата из ответа модели.
//
// Форма ответа фиксирована схемой промпта: числовой балл, enum-рекомендация
// и разбор по навыкам. Ответ, не соответствующий схеме, считается malformed.
type Analysis struct {
	Strengths  []string              `json:"strengths,omitempty"`
	Weaknesses []string              `json:"weaknesses,omitempty"`
	Skills     map[string]SkillMatch `json:"skill_matches,omitempty"`
	Highlights []string              `json:"key_highlights,omitempty"`
	Concerns   []string              `json:"concerns,omitempty"`
	Questions  []string              `json:"interview_questions,omitempty"`
	Summary    string                `json:"summary,omitempty"`
	Reasoning  string                `json:"recommendation_reasoning,omitempty"`
}

// SkillMatch — оценка одного требуемого навыка.
type SkillMatch struct {
	Score    int    `json:"score"`
	Evidence string `json:"evidence,omitempty"`
	Matched  bool   `json:"matched"`
}

// Degraded проверяет, помечена ли оценка указанной причиной деградации.
func (e *Evaluation) Degraded(reason string) bool {
	for _, d := range e.Degradations {
		if d == reason {
			return true
		}
	}
	return false
}

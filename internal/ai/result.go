package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Kadra/internal/domain"
)

// ErrMalformed — ответ модели не соответствует требуемой схеме.
var ErrMalformed = errors.New("malformed model response")

// EvalResult — разобранный и провалидированный ответ модели.
type EvalResult struct {
	OverallScore   int
	Recommendation domain.Recommendation
	Analysis       domain.Analysis
}

// rawResult — форма JSON-ответа модели до валидации.
type rawResult struct {
	OverallScore   *int                         `json:"overall_score"`
	Recommendation string                       `json:"recommendation"`
	Strengths      []string                     `json:"strengths"`
	Weaknesses     []string                     `json:"weaknesses"`
	SkillMatches   map[string]domain.SkillMatch `json:"skill_matches"`
	Highlights     []string                     `json:"key_highlights"`
	Concerns       []string                     `json:"concerns"`
	Questions      []string                     `json:"interview_questions"`
	Summary        string                       `json:"summary"`
	Reasoning      string                       `json:"recommendation_reasoning"`
}

// ParseResult разбирает ответ модели и валидирует его против схемы.
//
// Любое нарушение схемы (не-JSON, балл вне 1–10, неизвестная рекомендация)
// возвращается обёрнутым в domain.Malformed: оркестратор повторит запрос
// по отдельному бюджету, не смешивая его с бюджетом сетевых ошибок.
// Рекомендация приводится в соответствие баллу: 6 и выше — interview.
func ParseResult(content string) (*EvalResult, error) {
	content = stripFences(content)

	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, domain.Malformed(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	if raw.OverallScore == nil {
		return nil, domain.Malformed(fmt.Errorf("%w: overall_score is missing", ErrMalformed))
	}
	score := *raw.OverallScore
	if score < 1 || score > 10 {
		return nil, domain.Malformed(fmt.Errorf("%w: overall_score %d out of range 1-10", ErrMalformed, score))
	}

	rec := domain.Recommendation(strings.ToLower(strings.TrimSpace(raw.Recommendation)))
	if !rec.Valid() {
		return nil, domain.Malformed(fmt.Errorf("%w: unknown recommendation %q", ErrMalformed, raw.Recommendation))
	}

	// Консистентность балла и рекомендации: балл — источник истины
	if score >= 6 {
		rec = domain.RecommendationInterview
	} else {
		rec = domain.RecommendationDecline
	}

	return &EvalResult{
		OverallScore:   score,
		Recommendation: rec,
		Analysis: domain.Analysis{
			Strengths:  raw.Strengths,
			Weaknesses: raw.Weaknesses,
			Skills:     raw.SkillMatches,
			Highlights: raw.Highlights,
			Concerns:   raw.Concerns,
			Questions:  raw.Questions,
			Summary:    raw.Summary,
			Reasoning:  raw.Reasoning,
		},
	}, nil
}

// stripFences убирает markdown-ограждения вокруг JSON.
// Модели иногда оборачивают ответ в ```json ... ``` вопреки инструкции.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/Kadra/internal/domain"
)

// maxResumeChars — предел длины текста резюме в промпте.
// Длинные резюме усекаются, чтобы не выйти за контекст модели.
const maxResumeChars = 5000

// responseSchema — требуемая форма JSON-ответа модели.
const responseSchema = `{
  "overall_score": <integer 1-10>,
  "recommendation": "<interview|decline>",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "skill_matches": {"<skill>": {"score": <integer 1-10>, "evidence": "...", "matched": <bool>}},
  "experience_assessment": "...",
  "key_highlights": ["..."],
  "concerns": ["..."],
  "interview_questions": ["..."],
  "summary": "...",
  "recommendation_reasoning": "..."
}`

// BuildPrompt собирает промпт оценки кандидата.
//
// Сборка детерминированная: одинаковые вход — одинаковый промпт,
// что делает fingerprint стадии стабильным. Данные профиля опциональны:
// при nil соответствующая секция отсутствует.
func BuildPrompt(job *domain.JobDescription, resumeText string, profile map[string]any) string {
	if len(resumeText) > maxResumeChars {
		resumeText = resumeText[:maxResumeChars]
	}

	var b strings.Builder
	b.WriteString("You are an expert technical recruiter. Evaluate the candidate below against the job requirements.\n\n")

	b.WriteString("## Job\n")
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	if job.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", job.Description)
	}
	if len(job.RequiredSkills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(job.RequiredSkills, ", "))
	}
	if len(job.NiceToHaveSkills) > 0 {
		fmt.Fprintf(&b, "Nice to have: %s\n", strings.Join(job.NiceToHaveSkills, ", "))
	}
	if job.ExperienceYears > 0 {
		fmt.Fprintf(&b, "Required experience: %d years\n", job.ExperienceYears)
	}

	b.WriteString("\n## Resume\n")
	b.WriteString(resumeText)
	b.WriteString("\n")

	if profile != nil {
		b.WriteString("\n## Code profile\n")
		// Каноничный JSON: ключи map сериализуются в отсортированном порядке
		if raw, err := json.Marshal(profile); err == nil {
			b.Write(raw)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRespond with a single JSON object exactly matching this schema, no prose outside JSON:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nScoring rule: overall_score of 6 or higher means recommendation \"interview\", below 6 means \"decline\".\n")

	return b.String()
}

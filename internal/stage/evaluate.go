package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/ai"
	"github.com/shaiso/Kadra/internal/domain"
)

// EvaluateExecutor — executor стадии ai_evaluation.
//
// Собирает детерминированный промпт из описания вакансии, текста резюме
// и данных профиля (если есть), вызывает модель и строго валидирует
// структурированный ответ. Malformed-ответы получают у оркестратора
// отдельный бюджет retry, не пересекающийся с бюджетом сетевых ошибок.
//
// Outputs:
//   - overall_score (int): итоговый балл 1–10
//   - recommendation (string): interview или decline
//   - analysis (map): структурированный разбор
//   - model (string): имя модели
type EvaluateExecutor struct {
	AI Completer
}

// Stage возвращает имя стадии.
func (e *EvaluateExecutor) Stage() domain.Stage { return domain.StageEvaluate }

// Policy возвращает политику retry стадии.
func (e *EvaluateExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:       3,
		Backoff:           "exponential",
		InitialDelay:      2 * time.Second,
		MaxDelay:          30 * time.Second,
		Timeout:           60 * time.Second,
		MalformedAttempts: 3,
	}
}

// Fingerprint строится по всем входам оценки: вакансия, текст резюме,
// данные профиля. Изменение любого из них — новая работа.
func (e *EvaluateExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"job_id":  ec.Candidate.JobID.String(),
		"text":    ec.OutputString(domain.StageParse, "text"),
		"profile": ec.OutputMap(domain.StageFetch, "profile"),
	})
}

// Execute выполняет одну попытку AI-оценки.
func (e *EvaluateExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	text := ec.OutputString(domain.StageParse, "text")
	if text == "" {
		return nil, ErrNoResumeText
	}

	profile := ec.OutputMap(domain.StageFetch, "profile")
	prompt := ai.BuildPrompt(ec.Job, text, profile)

	content, err := e.AI.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := ai.ParseResult(content)
	if err != nil {
		return nil, err
	}

	analysis, err := toMap(parsed.Analysis)
	if err != nil {
		return nil, err
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output: map[string]any{
			"overall_score":  parsed.OverallScore,
			"recommendation": string(parsed.Recommendation),
			"analysis":       analysis,
			"model":          e.AI.Model(),
		},
		Detail: fmt.Sprintf("evaluated: score %d, %s", parsed.OverallScore, parsed.Recommendation),
	}, nil
}

// EvaluationFromOutput строит доменную оценку из результата стадии.
//
// Используется оркестратором и при свежем выполнении, и при
// идемпотентном переиспользовании записи журнала.
func EvaluationFromOutput(c *domain.Candidate, output map[string]any) (*domain.Evaluation, error) {
	var parsed struct {
		OverallScore   int             `json:"overall_score"`
		Recommendation string          `json:"recommendation"`
		Analysis       domain.Analysis `json:"analysis"`
		Model          string          `json:"model"`
	}
	if err := fromMap(output, &parsed); err != nil {
		return nil, err
	}

	rec := domain.Recommendation(parsed.Recommendation)
	if parsed.OverallScore < 1 || parsed.OverallScore > 10 || !rec.Valid() {
		return nil, fmt.Errorf("invalid evaluation output for candidate %s", c.ID)
	}

	return &domain.Evaluation{
		ID:             uuid.New(),
		CandidateID:    c.ID,
		OverallScore:   parsed.OverallScore,
		Recommendation: rec,
		Analysis:       parsed.Analysis,
		Model:          parsed.Model,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

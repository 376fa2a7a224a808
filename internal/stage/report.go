package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
)

// ReportExecutor — executor стадии report_generation.
//
// Рендерит детерминированный markdown-документ с результатами оценки
// и сохраняет его в хранилище артефактов. Одинаковая оценка —
// байт-в-байт одинаковый документ: в рендере нет часов и случайности.
//
// Outputs:
//   - report_ref (string): ссылка на сохранённый документ
//   - bytes (int): размер документа
type ReportExecutor struct {
	Artifacts ArtifactStore
}

// Stage возвращает имя стадии.
func (e *ReportExecutor) Stage() domain.Stage { return domain.StageReport }

// Policy возвращает политику retry стадии.
func (e *ReportExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:  3,
		Backoff:      "fixed",
		InitialDelay: time.Second,
		Timeout:      15 * time.Second,
	}
}

// Fingerprint строится по содержимому оценки.
func (e *ReportExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"evaluation": ec.Outputs[domain.StageEvaluate],
	})
}

// Execute рендерит и сохраняет документ с оценкой.
func (e *ReportExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	if ec.Evaluation == nil {
		return nil, ErrNoEvaluation
	}

	doc := renderReport(ec.Candidate, ec.Job, ec.Evaluation, ec.Degradations)
	name := fmt.Sprintf("report-%s.md", ec.Candidate.ID)

	ref, err := e.Artifacts.Put(ctx, name, []byte(doc))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("store report %s: %w", name, err))
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output:  map[string]any{"report_ref": ref, "bytes": len(doc)},
		Detail:  "generated report " + ref,
	}, nil
}

// renderReport строит markdown-документ с результатами скрининга.
func renderReport(c *domain.Candidate, job *domain.JobDescription, ev *domain.Evaluation, degradations []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Screening report: %s\n\n", c.Name)
	fmt.Fprintf(&b, "- Candidate: %s (%s)\n", c.Name, c.Email)
	fmt.Fprintf(&b, "- Position: %s\n", job.Title)
	fmt.Fprintf(&b, "- Overall score: %d/10\n", ev.OverallScore)
	fmt.Fprintf(&b, "- Recommendation: %s\n", ev.Recommendation)
	if ev.Model != "" {
		fmt.Fprintf(&b, "- Model: %s\n", ev.Model)
	}

	if len(degradations) > 0 {
		sorted := append([]string(nil), degradations...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "- Degradations: %s\n", strings.Join(sorted, ", "))
	}
	b.WriteString("\n")

	if ev.Analysis.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", ev.Analysis.Summary)
	}

	writeList(&b, "Strengths", ev.Analysis.Strengths)
	writeList(&b, "Weaknesses", ev.Analysis.Weaknesses)

	if len(ev.Analysis.Skills) > 0 {
		b.WriteString("## Skill matches\n\n")
		skills := make([]string, 0, len(ev.Analysis.Skills))
		for s := range ev.Analysis.Skills {
			skills = append(skills, s)
		}
		sort.Strings(skills)
		for _, s := range skills {
			m := ev.Analysis.Skills[s]
			fmt.Fprintf(&b, "- %s: %d/10", s, m.Score)
			if m.Evidence != "" {
				fmt.Fprintf(&b, " (%s)", m.Evidence)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	writeList(&b, "Key highlights", ev.Analysis.Highlights)
	writeList(&b, "Concerns", ev.Analysis.Concerns)
	writeList(&b, "Suggested interview questions", ev.Analysis.Questions)

	if ev.Analysis.Reasoning != "" {
		fmt.Fprintf(&b, "## Reasoning\n\n%s\n", ev.Analysis.Reasoning)
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

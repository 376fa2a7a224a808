package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// NotifyExecutor — executor стадии notification.
//
// Доставляет заинтересованным лицам уведомление с результатом оценки.
// В сообщение вшивается свежий correlation-токен: по нему reconciler
// привяжет будущий inbound feedback к кандидату. Повторная доставка
// гейтится флагом NotificationSent (exactly-once на успешный проход).
//
// Outputs:
//   - sent (bool): было ли отправлено сообщение
//   - token (string): вшитый correlation-токен (пустой при sent=false)
//   - delivery_id (string): идентификатор доставки у провайдера
type NotifyExecutor struct {
	Messenger Messenger
}

// Stage возвращает имя стадии.
func (e *NotifyExecutor) Stage() domain.Stage { return domain.StageNotify }

// Policy возвращает политику retry стадии.
func (e *NotifyExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:  5,
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Timeout:      15 * time.Second,
	}
}

// Fingerprint строится по оценке и ссылке на отчёт.
func (e *NotifyExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"evaluation": ec.Outputs[domain.StageEvaluate],
		"report_ref": ec.OutputString(domain.StageReport, "report_ref"),
	})
}

// Execute отправляет уведомление, если оно ещё не доставлялось.
func (e *NotifyExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	if ec.Evaluation == nil {
		return nil, ErrNoEvaluation
	}

	if ec.Evaluation.NotificationSent && !ec.Force {
		return &Result{
			Outcome: domain.OutcomeSuccess,
			Output:  map[string]any{"sent": false, "token": "", "delivery_id": ""},
			Detail:  "notification already delivered, skipped",
		}, nil
	}

	token := uuid.NewString()
	text := renderNotification(ec.Candidate, ec.Job, ec.Evaluation, token)

	deliveryID, err := e.Messenger.Send(ctx, text, token)
	if err != nil {
		// Доставка — обычный сетевой вызов, классификацию
		// берёт на себя адаптер мессенджера
		return nil, err
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output:  map[string]any{"sent": true, "token": token, "delivery_id": deliveryID},
		Detail:  "notification delivered " + deliveryID,
	}, nil
}

// renderNotification строит текст уведомления с вшитым токеном.
func renderNotification(c *domain.Candidate, job *domain.JobDescription, ev *domain.Evaluation, token string) string {
	var b strings.Builder

	verdict := "❌ Decline"
	if ev.Recommendation == domain.RecommendationInterview {
		verdict = "✅ Interview"
	}

	fmt.Fprintf(&b, "Candidate screened: %s\n", c.Name)
	fmt.Fprintf(&b, "Position: %s\n", job.Title)
	fmt.Fprintf(&b, "Score: %d/10\n", ev.OverallScore)
	fmt.Fprintf(&b, "Recommendation: %s\n", verdict)
	if ev.Analysis.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", ev.Analysis.Summary)
	}
	if len(ev.Degradations) > 0 {
		fmt.Fprintf(&b, "\nNote: evaluation degraded (%s)\n", strings.Join(ev.Degradations, ", "))
	}
	fmt.Fprintf(&b, "\nReply with interview/decline and reference %s\n", token)

	return b.String()
}

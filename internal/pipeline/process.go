package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/stage"
	"github.com/shaiso/Kadra/internal/store"
	"github.com/shaiso/Kadra/internal/telemetry"
)

// processCandidate выполняет один проход конвейера для кандидата.
//
// Проход начинается с захвата лизы: если кандидатом уже владеет другой
// воркер (в том числе в другом процессе), проход молча пропускается.
// Все побочные эффекты в хранилище (оценка, токен, флаг уведомления,
// записи журнала) принадлежат этому методу, не executor'ам стадий.
func (p *Pipeline) processCandidate(ctx context.Context, id uuid.UUID, owner string) {
	logger := p.logger.With("candidate_id", id, "worker", owner)

	c, err := p.candidates.AcquireLease(ctx, id, owner, p.leaseTTL)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Debug("candidate already leased, skipping")
			return
		}
		logger.Error("failed to acquire lease", "error", err)
		return
	}
	defer func() {
		if err := p.candidates.ReleaseLease(context.WithoutCancel(ctx), id, owner); err != nil {
			logger.Warn("failed to release lease", "error", err)
		}
	}()

	if c.State.IsTerminal() {
		logger.Debug("candidate already terminal, skipping", "state", c.State)
		return
	}

	job, err := p.jobs.Get(ctx, c.JobID)
	if err != nil {
		p.failCandidate(ctx, c, fmt.Sprintf("load job description: %v", err), logger)
		return
	}

	ec := stage.NewExecContext(c, job)
	ec.Force = p.isForced(id)

	// Уже существующая оценка попадает в контекст сразу: её флаги
	// гейтят повторную доставку уведомления при reprocess
	if ev, err := p.evaluations.GetByCandidate(ctx, c.ID); err == nil {
		ec.Evaluation = ev
		ec.Degradations = append(ec.Degradations, ev.Degradations...)
	}

	logger.Info("processing started", "state", c.State, "force", ec.Force)

	for _, st := range domain.Stages {
		// Флаг отмены проверяется на границе стадий: текущая попытка
		// всегда дорабатывает
		if cancelled, err := p.cancelRequested(ctx, c); err != nil {
			logger.Error("failed to refresh candidate", "error", err)
			return
		} else if cancelled {
			p.failCandidate(ctx, c, ErrAborted.Error(), logger)
			return
		}

		exec, err := p.registry.Get(st)
		if err != nil {
			p.failCandidate(ctx, c, fmt.Sprintf("stage %s: %v", st, err), logger)
			return
		}

		fingerprint := exec.Fingerprint(ec)

		// Идемпотентный гейт: успешная попытка с тем же входом
		// переиспользуется, без повторного выполнения и без новой
		// записи в журнале. Форсированный проход выполняет notification
		// заново: force существует ради повторной доставки
		reusable := !(ec.Force && st == domain.StageNotify)
		if prev, err := p.audit.LastSuccess(ctx, c.ID, st, fingerprint); err == nil && reusable {
			telemetry.StageReuses.WithLabelValues(string(st)).Inc()
			logger.Info("stage output reused", "stage", st, "attempt", prev.Attempt)

			if !p.advance(ctx, c, st, logger) {
				return
			}
			ec.SetOutput(st, prev.Output)
			if err := p.applySideEffects(ctx, st, ec); err != nil {
				p.failCandidate(ctx, c, fmt.Sprintf("stage %s side effects: %v", st, err), logger)
				return
			}
			continue
		}

		if !p.advance(ctx, c, st, logger) {
			return
		}

		output, outcome, err := p.runStage(ctx, exec, ec, c, fingerprint, logger)
		if err != nil {
			p.failCandidate(ctx, c, fmt.Sprintf("stage %s: %v", st, err), logger)
			return
		}

		if outcome == domain.OutcomeDegraded {
			logger.Warn("stage degraded, pipeline continues", "stage", st)
			continue
		}

		ec.SetOutput(st, output)
		if err := p.applySideEffects(ctx, st, ec); err != nil {
			p.failCandidate(ctx, c, fmt.Sprintf("stage %s side effects: %v", st, err), logger)
			return
		}
	}

	if !c.MarkCompleted() {
		p.failCandidate(ctx, c, fmt.Sprintf("illegal completion from %s", c.State), logger)
		return
	}
	if err := p.candidates.Update(ctx, c); err != nil {
		logger.Error("failed to persist completion", "error", err)
		return
	}

	telemetry.CandidatesFinished.WithLabelValues(string(domain.StateCompleted)).Inc()
	logger.Info("processing completed",
		"degradations", ec.Degradations,
	)
}

// advance переводит кандидата в состояние стадии st.
//
// При replay после рестарта состояние может уже находиться на st или
// дальше: стадия позади текущей позиции легальна — она либо
// переиспользуется из журнала, либо (degraded-попытка записи успеха не
// оставляет) выполняется заново. Обратный переход не персистится.
func (p *Pipeline) advance(ctx context.Context, c *domain.Candidate, st domain.Stage, logger *slog.Logger) bool {
	target := domain.StateFor(st)
	switch {
	case c.State == target:
		// Уже в этом состоянии (возобновление после рестарта)
	case domain.CanTransition(c.State, target):
		c.EnterStage(st)
	case domain.StageIndex(c.Stage) >= domain.StageIndex(st):
		// Стадия позади текущей позиции, переход не нужен
		return true
	default:
		p.failCandidate(ctx, c, fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, c.State, target), logger)
		return false
	}

	c.WorkStatus = domain.WorkProcessing
	if err := p.candidates.Update(ctx, c); err != nil {
		logger.Error("failed to persist stage transition", "stage", st, "error", err)
		return false
	}
	return true
}

// runStage выполняет стадию с применением её политики retry.
//
// Каждая попытка — отдельная запись журнала. Временные и структурно
// невалидные ошибки расходуют раздельные бюджеты; постоянная ошибка
// или исчерпание бюджета возвращают ошибку стадии.
func (p *Pipeline) runStage(
	ctx context.Context,
	exec stage.Executor,
	ec *stage.ExecContext,
	c *domain.Candidate,
	fingerprint string,
	logger *slog.Logger,
) (map[string]any, domain.Outcome, error) {
	policy := exec.Policy()
	st := exec.Stage()

	transientUsed := 0
	malformedUsed := 0
	attempt := 0

	for {
		attempt++
		c.Attempt = attempt
		if err := p.candidates.Update(ctx, c); err != nil {
			return nil, "", fmt.Errorf("persist attempt counter: %w", err)
		}

		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}

		started := time.Now()
		res, execErr := exec.Execute(attemptCtx, ec)
		finished := time.Now()
		cancel()

		entry := &domain.AuditEntry{
			ID:          uuid.New(),
			CandidateID: c.ID,
			Stage:       st,
			Attempt:     attempt,
			StartedAt:   started,
			FinishedAt:  finished,
			Fingerprint: fingerprint,
		}

		if execErr == nil {
			entry.Outcome = res.Outcome
			entry.Output = res.Output
			entry.Detail = res.Detail
			p.appendAudit(ctx, entry, logger)
			telemetry.StageAttempts.WithLabelValues(string(st), string(res.Outcome)).Inc()
			telemetry.StageDuration.WithLabelValues(string(st)).Observe(finished.Sub(started).Seconds())

			logger.Info("stage attempt succeeded", "stage", st, "attempt", attempt, "outcome", res.Outcome)
			return res.Output, res.Outcome, nil
		}

		telemetry.StageDuration.WithLabelValues(string(st)).Observe(finished.Sub(started).Seconds())

		switch domain.Classify(execErr) {
		case domain.ClassDegradable:
			reason, _ := domain.DegradationReason(execErr)
			entry.Outcome = domain.OutcomeDegraded
			entry.Error = execErr.Error()
			entry.Detail = "degraded: " + reason
			p.appendAudit(ctx, entry, logger)
			telemetry.StageAttempts.WithLabelValues(string(st), string(domain.OutcomeDegraded)).Inc()

			ec.Degrade(reason)
			logger.Warn("stage degraded", "stage", st, "attempt", attempt, "reason", reason)
			return nil, domain.OutcomeDegraded, nil

		case domain.ClassTransient:
			transientUsed++
			entry.Outcome = domain.OutcomeFailed
			entry.Error = execErr.Error()
			p.appendAudit(ctx, entry, logger)
			telemetry.StageAttempts.WithLabelValues(string(st), string(domain.OutcomeFailed)).Inc()

			if transientUsed >= policy.MaxAttempts {
				return nil, "", fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt, execErr)
			}

			delay := policy.Delay(transientUsed, execErr)
			logger.Warn("stage attempt failed, retrying",
				"stage", st, "attempt", attempt, "delay", delay, "error", execErr)
			if !sleepCtx(ctx, delay) {
				return nil, "", ctx.Err()
			}

		case domain.ClassMalformed:
			malformedUsed++
			entry.Outcome = domain.OutcomeFailed
			entry.Error = execErr.Error()
			p.appendAudit(ctx, entry, logger)
			telemetry.StageAttempts.WithLabelValues(string(st), string(domain.OutcomeFailed)).Inc()

			if policy.MalformedAttempts <= 0 || malformedUsed >= policy.MalformedAttempts {
				return nil, "", fmt.Errorf("%w (malformed budget) after %d attempts: %v", ErrRetryExhausted, attempt, execErr)
			}

			logger.Warn("malformed response, retrying",
				"stage", st, "attempt", attempt, "error", execErr)
			if !sleepCtx(ctx, policy.Delay(malformedUsed, nil)) {
				return nil, "", ctx.Err()
			}

		default: // ClassPermanent
			entry.Outcome = domain.OutcomeFailed
			entry.Error = execErr.Error()
			p.appendAudit(ctx, entry, logger)
			telemetry.StageAttempts.WithLabelValues(string(st), string(domain.OutcomeFailed)).Inc()

			return nil, "", execErr
		}
	}
}

// applySideEffects выполняет побочные эффекты успешной стадии в хранилище.
//
// Все эффекты идемпотентны: повторное применение при replay или
// переиспользовании записи журнала безопасно.
func (p *Pipeline) applySideEffects(ctx context.Context, st domain.Stage, ec *stage.ExecContext) error {
	switch st {
	case domain.StageEvaluate:
		ev, err := stage.EvaluationFromOutput(ec.Candidate, ec.Outputs[st])
		if err != nil {
			return err
		}
		ev.Degradations = ec.Degradations

		if err := p.evaluations.Create(ctx, ev); err != nil {
			if !errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("create evaluation: %w", err)
			}
			// Оценка уже есть (reprocess) — one-to-one инвариант
			existing, err := p.evaluations.GetByCandidate(ctx, ec.Candidate.ID)
			if err != nil {
				return fmt.Errorf("load existing evaluation: %w", err)
			}
			ev = existing
		}
		ec.Evaluation = ev

	case domain.StageReport:
		ref := ec.OutputString(st, "report_ref")
		if ref == "" || ec.Evaluation == nil {
			return nil
		}
		if err := p.evaluations.SetReportRef(ctx, ec.Evaluation.ID, ref); err != nil {
			return fmt.Errorf("set report ref: %w", err)
		}
		ec.Evaluation.ReportRef = ref

	case domain.StageNotify:
		if !ec.OutputBool(st, "sent") || ec.Evaluation == nil {
			return nil
		}
		token := ec.OutputString(st, "token")
		if token != "" {
			now := time.Now()
			err := p.tokens.Bind(ctx, &domain.CorrelationToken{
				Token:        token,
				CandidateID:  ec.Candidate.ID,
				EvaluationID: ec.Evaluation.ID,
				IssuedAt:     now,
				ExpiresAt:    now.Add(p.tokenTTL),
			})
			if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("bind correlation token: %w", err)
			}
		}
		if err := p.evaluations.MarkNotified(ctx, ec.Evaluation.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("mark notified: %w", err)
		}
		ec.Evaluation.NotificationSent = true
	}

	return nil
}

// cancelRequested перечитывает кандидата и проверяет флаг отмены.
// Перечитывание обновляет и версию CAS после конкурентного RequestCancel.
func (p *Pipeline) cancelRequested(ctx context.Context, c *domain.Candidate) (bool, error) {
	fresh, err := p.candidates.Get(ctx, c.ID)
	if err != nil {
		return false, err
	}
	c.CancelRequested = fresh.CancelRequested
	c.Version = fresh.Version
	return fresh.CancelRequested, nil
}

// failCandidate переводит кандидата в FAILED с причиной.
func (p *Pipeline) failCandidate(ctx context.Context, c *domain.Candidate, cause string, logger *slog.Logger) {
	if !c.MarkFailed(cause) {
		logger.Error("cannot fail candidate from current state", "state", c.State, "cause", cause)
		return
	}
	if err := p.candidates.Update(ctx, c); err != nil {
		logger.Error("failed to persist failure", "cause", cause, "error", err)
		return
	}

	telemetry.CandidatesFinished.WithLabelValues(string(domain.StateFailed)).Inc()
	logger.Warn("processing failed", "cause", cause)
}

// appendAudit пишет запись журнала. Журнал — источник истины для
// идемпотентного гейта, поэтому ошибка записи логируется громко.
func (p *Pipeline) appendAudit(ctx context.Context, e *domain.AuditEntry, logger *slog.Logger) {
	if err := p.audit.Append(ctx, e); err != nil {
		logger.Error("failed to append audit entry",
			"stage", e.Stage, "attempt", e.Attempt, "error", err)
	}
}

// sleepCtx ждёт delay или отмену контекста. false — контекст отменён.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

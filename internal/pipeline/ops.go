package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

// StartProcessing ставит кандидата в очередь на скрининг.
//
// Повторный запуск для кандидата, которым уже владеет воркер,
// отклоняется с конфликтом, а не запускает второй параллельный проход.
func (p *Pipeline) StartProcessing(ctx context.Context, id uuid.UUID) error {
	c, err := p.candidates.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate %s: %w", id, err)
	}

	if c.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, c.State)
	}
	if c.IsLeased(time.Now()) || c.WorkStatus == domain.WorkProcessing {
		return fmt.Errorf("%w: candidate %s", ErrAlreadyQueued, id)
	}

	if c.WorkStatus != domain.WorkQueued {
		c.WorkStatus = domain.WorkQueued
		if err := p.candidates.Update(ctx, c); err != nil {
			return fmt.Errorf("queue candidate %s: %w", id, err)
		}
	}

	if err := p.enqueue(id); err != nil {
		// Кандидат остаётся QUEUED в хранилище, его подхватит polling
		p.logger.Warn("queue full, candidate deferred to poll", "candidate_id", id)
	}

	p.logger.Info("candidate queued", "candidate_id", id)
	return nil
}

// Reprocess возвращает кандидата из FAILED в SUBMITTED и ставит в очередь.
//
// Единственный легальный выход из FAILED; система никогда не делает
// этого автоматически. force форсирует повторную доставку уведомления,
// иначе она гейтится флагом NotificationSent.
func (p *Pipeline) Reprocess(ctx context.Context, id uuid.UUID, force bool) error {
	c, err := p.candidates.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate %s: %w", id, err)
	}

	if c.IsLeased(time.Now()) {
		return fmt.Errorf("%w: candidate %s", ErrAlreadyQueued, id)
	}
	if !c.ResetForReprocess() {
		return fmt.Errorf("%w: reprocess from %s", ErrInvalidTransition, c.State)
	}

	c.WorkStatus = domain.WorkQueued
	if err := p.candidates.Update(ctx, c); err != nil {
		return fmt.Errorf("reset candidate %s: %w", id, err)
	}

	if force {
		p.markForced(id)
	}

	if err := p.enqueue(id); err != nil {
		p.logger.Warn("queue full, candidate deferred to poll", "candidate_id", id)
	}

	p.logger.Info("candidate reprocess queued", "candidate_id", id, "force", force)
	return nil
}

// Abort запрашивает отмену обработки кандидата.
//
// Если кандидата обрабатывает воркер, текущая попытка стадии доработает
// (или истечёт по таймауту), после чего оркестратор увидит флаг отмены
// и переведёт кандидата в FAILED. Необрабатываемый кандидат переводится
// сразу.
func (p *Pipeline) Abort(ctx context.Context, id uuid.UUID) error {
	c, err := p.candidates.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate %s: %w", id, err)
	}

	if c.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, c.State)
	}

	if err := p.candidates.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("request cancel for %s: %w", id, err)
	}

	if !c.IsLeased(time.Now()) && c.WorkStatus != domain.WorkProcessing {
		// Никто не владеет кандидатом — завершаем немедленно
		fresh, err := p.candidates.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load candidate %s: %w", id, err)
		}
		if fresh.MarkFailed(ErrAborted.Error()) {
			if err := p.candidates.Update(ctx, fresh); err != nil && !isConflict(err) {
				return fmt.Errorf("fail candidate %s: %w", id, err)
			}
		}
	}

	p.logger.Info("candidate abort requested", "candidate_id", id)
	return nil
}

// GetState возвращает текущую запись кандидата.
func (p *Pipeline) GetState(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	return p.candidates.Get(ctx, id)
}

// GetAuditTrail возвращает полную хронологию попыток по кандидату.
func (p *Pipeline) GetAuditTrail(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	return p.audit.History(ctx, id)
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrAlreadyExists)
}

// Package janitor — фоновая уборка: возврат истёкших лиз и чистка
// истёкших correlation-токенов.
//
// Истёкшая лиза означает умерший или зависший воркер. Janitor снимает
// лизу и возвращает кандидата в очередь, а не валит его: идемпотентный
// гейт делает возобновление безопасным — завершённые стадии будут
// переиспользованы, а не выполнены заново.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
	"github.com/shaiso/Kadra/internal/telemetry"
)

// Default configuration values.
const (
	defaultLeaseSpec = "@every 30s"
	defaultTokenSpec = "@every 1h"
	defaultBatchSize = 100
)

// Janitor выполняет периодические задачи уборки по cron-расписанию.
type Janitor struct {
	candidates store.Candidates
	tokens     store.Tokens

	cron      *cron.Cron
	leaseSpec string
	tokenSpec string
	batchSize int

	logger *slog.Logger
}

// Config — конфигурация Janitor.
type Config struct {
	Candidates store.Candidates
	Tokens     store.Tokens

	// LeaseSpec — расписание возврата истёкших лиз (default: "@every 30s").
	LeaseSpec string

	// TokenSpec — расписание чистки токенов (default: "@every 1h").
	TokenSpec string

	// BatchSize — количество кандидатов за один проход (default: 100).
	BatchSize int

	// Logger
	Logger *slog.Logger
}

// New создаёт Janitor.
func New(cfg Config) *Janitor {
	leaseSpec := cfg.LeaseSpec
	if leaseSpec == "" {
		leaseSpec = defaultLeaseSpec
	}

	tokenSpec := cfg.TokenSpec
	if tokenSpec == "" {
		tokenSpec = defaultTokenSpec
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		candidates: cfg.Candidates,
		tokens:     cfg.Tokens,
		leaseSpec:  leaseSpec,
		tokenSpec:  tokenSpec,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Start запускает cron-расписание.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()

	if _, err := j.cron.AddFunc(j.leaseSpec, func() {
		if err := j.ReclaimLeases(ctx); err != nil {
			j.logger.Error("lease reclaim failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule lease reclaim %q: %w", j.leaseSpec, err)
	}

	if _, err := j.cron.AddFunc(j.tokenSpec, func() {
		if err := j.PurgeTokens(ctx); err != nil {
			j.logger.Error("token purge failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule token purge %q: %w", j.tokenSpec, err)
	}

	j.cron.Start()
	j.logger.Info("janitor started", "lease_spec", j.leaseSpec, "token_spec", j.tokenSpec)
	return nil
}

// Stop останавливает cron и дожидается завершения текущих задач.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// ReclaimLeases возвращает кандидатов с истёкшей лизой в очередь.
func (j *Janitor) ReclaimLeases(ctx context.Context) error {
	now := time.Now()

	expired, err := j.candidates.ListExpiredLeases(ctx, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("list expired leases: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	reclaimed := 0
	for i := range expired {
		c := &expired[i]
		owner := ""
		if c.LeaseOwner != nil {
			owner = *c.LeaseOwner
		}

		c.LeaseOwner = nil
		c.LeaseExpiresAt = nil
		c.WorkStatus = domain.WorkQueued
		c.UpdatedAt = now

		if err := j.candidates.Update(ctx, c); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Кого-то опередили — кандидат уже в работе
				continue
			}
			j.logger.Error("failed to reclaim lease", "candidate_id", c.ID, "error", err)
			continue
		}

		reclaimed++
		telemetry.LeasesReclaimed.Inc()
		j.logger.Warn("expired lease reclaimed, candidate requeued",
			"candidate_id", c.ID,
			"previous_owner", owner,
			"stage", c.Stage,
		)
	}

	j.logger.Info("lease reclaim completed", "expired", len(expired), "reclaimed", reclaimed)
	return nil
}

// PurgeTokens удаляет истёкшие correlation-токены.
func (j *Janitor) PurgeTokens(ctx context.Context) error {
	n, err := j.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("delete expired tokens: %w", err)
	}
	if n > 0 {
		telemetry.TokensPurged.Add(float64(n))
		j.logger.Info("expired tokens purged", "count", n)
	}
	return nil
}

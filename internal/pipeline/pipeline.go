package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/mq"
	"github.com/shaiso/Kadra/internal/stage"
	"github.com/shaiso/Kadra/internal/store"
	"github.com/shaiso/Kadra/internal/telemetry"
)

// Default configuration values.
const (
	defaultWorkers      = 5
	defaultQueueSize    = 256
	defaultLeaseTTL     = 10 * time.Minute
	defaultTokenTTL     = 14 * 24 * time.Hour
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Pipeline управляет скринингом кандидатов.
type Pipeline struct {
	// Stores
	candidates  store.Candidates
	audit       store.AuditLog
	evaluations store.Evaluations
	tokens      store.Tokens
	jobs        store.Jobs

	// Executor registry
	registry *stage.Registry

	// MQ (опционально; nil — только polling)
	conn     *mq.Connection
	consumer *mq.Consumer

	// Очередь кандидатов на обработку
	queue chan uuid.UUID

	// In-flight кандидаты (queued или processing в этом процессе)
	inflight map[uuid.UUID]struct{}
	forced   map[uuid.UUID]struct{}
	mu       sync.Mutex

	// Configuration
	instanceID   string
	workers      int
	leaseTTL     time.Duration
	tokenTTL     time.Duration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Pipeline.
type Config struct {
	// Stores
	Candidates  store.Candidates
	Audit       store.AuditLog
	Evaluations store.Evaluations
	Tokens      store.Tokens
	Jobs        store.Jobs

	// Registry — реестр executor'ов стадий.
	Registry *stage.Registry

	// Conn — соединение с RabbitMQ (nil — работа только через polling).
	Conn *mq.Connection

	// Workers — размер пула воркеров (default: 5).
	Workers int

	// QueueSize — ёмкость очереди кандидатов (default: 256).
	QueueSize int

	// LeaseTTL — срок лизы на кандидата (default: 10m).
	LeaseTTL time.Duration

	// TokenTTL — срок жизни correlation-токена (default: 14d).
	TokenTTL time.Duration

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество кандидатов за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Pipeline.
func New(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		candidates:   cfg.Candidates,
		audit:        cfg.Audit,
		evaluations:  cfg.Evaluations,
		tokens:       cfg.Tokens,
		jobs:         cfg.Jobs,
		registry:     cfg.Registry,
		conn:         cfg.Conn,
		queue:        make(chan uuid.UUID, queueSize),
		inflight:     make(map[uuid.UUID]struct{}),
		forced:       make(map[uuid.UUID]struct{}),
		instanceID:   uuid.New().String()[:8],
		workers:      workers,
		leaseTTL:     leaseTTL,
		tokenTTL:     tokenTTL,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Pipeline.
//
// Запускает:
//   - Пул воркеров
//   - Consumer для candidates.submitted (если есть MQ)
//   - Polling горутину для fallback
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	p.logger.Info("starting pipeline",
		"workers", p.workers,
		"queue_size", cap(p.queue),
		"poll_interval", p.pollInterval,
	)

	// Запускаем пул воркеров
	for i := 0; i < p.workers; i++ {
		owner := fmt.Sprintf("%s-worker-%d", p.instanceID, i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.workerLoop(ctx, owner)
		}()
	}

	// Запускаем consumer
	if p.conn != nil {
		p.consumer = mq.NewConsumer(p.conn, p.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueCandidatesSubmitted),
			Handler:  p.handleCandidateSubmitted,
			Prefetch: p.workers,
		})

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("candidate consumer error", "error", err)
			}
		}()
	}

	// Запускаем polling
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()

	p.logger.Info("pipeline started")
	return nil
}

// Stop останавливает Pipeline.
func (p *Pipeline) Stop() {
	p.stoppedMu.Lock()
	p.stopped = true
	p.stoppedMu.Unlock()

	p.logger.Info("stopping pipeline...")

	if p.cancelFunc != nil {
		p.cancelFunc()
	}

	if p.consumer != nil {
		p.consumer.Stop()
	}

	// Ждём завершения горутин
	p.wg.Wait()

	p.logger.Info("pipeline stopped")
}

// IsStopped проверяет, остановлен ли Pipeline.
func (p *Pipeline) IsStopped() bool {
	p.stoppedMu.RLock()
	defer p.stoppedMu.RUnlock()
	return p.stopped
}

// workerLoop — цикл одного воркера пула.
func (p *Pipeline) workerLoop(ctx context.Context, owner string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			telemetry.QueueDepth.Set(float64(len(p.queue)))
			telemetry.BusyWorkers.Inc()
			p.processCandidate(ctx, id, owner)
			telemetry.BusyWorkers.Dec()
			p.clearInflight(id)
		}
	}
}

// handleCandidateSubmitted обрабатывает событие о новом кандидате из MQ.
func (p *Pipeline) handleCandidateSubmitted(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.CandidateSubmittedPayload](&d.Message)
	if err != nil {
		return fmt.Errorf("parse candidate.submitted payload: %w", err)
	}

	if payload.Force {
		p.markForced(payload.CandidateID)
	}

	if err := p.enqueue(payload.CandidateID); err != nil {
		// Очередь переполнена — кандидат останется QUEUED в хранилище,
		// его подхватит polling. Сообщение подтверждаем.
		p.logger.Warn("queue full, deferring candidate to poll",
			"candidate_id", payload.CandidateID,
		)
	}
	return nil
}

// pollLoop — цикл polling для fallback.
func (p *Pipeline) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем кандидатов,
	// появившихся пока процесс был выключен)
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (p *Pipeline) poll(ctx context.Context) {
	queued, err := p.candidates.ListQueued(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to list queued candidates", "error", err)
		return
	}

	if len(queued) == 0 {
		return
	}

	p.logger.Debug("poll found queued candidates", "count", len(queued))

	for i := range queued {
		if err := p.enqueue(queued[i].ID); err != nil {
			// Очередь полна — остальные дождутся следующего poll
			return
		}
	}
}

// enqueue ставит кандидата в локальную очередь, если он ещё не in-flight.
func (p *Pipeline) enqueue(id uuid.UUID) error {
	p.mu.Lock()
	if _, exists := p.inflight[id]; exists {
		p.mu.Unlock()
		return nil
	}
	p.inflight[id] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- id:
		telemetry.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		p.clearInflight(id)
		return errors.New("pipeline queue is full")
	}
}

// clearInflight убирает кандидата из in-flight набора.
func (p *Pipeline) clearInflight(id uuid.UUID) {
	p.mu.Lock()
	delete(p.inflight, id)
	delete(p.forced, id)
	p.mu.Unlock()
}

// markForced помечает кандидата для форсированного прохода
// (повторная доставка уведомления при reprocess --force).
func (p *Pipeline) markForced(id uuid.UUID) {
	p.mu.Lock()
	p.forced[id] = struct{}{}
	p.mu.Unlock()
}

// isForced проверяет форсированный режим для кандидата.
func (p *Pipeline) isForced(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.forced[id]
	return ok
}

// InflightCount возвращает количество in-flight кандидатов.
func (p *Pipeline) InflightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

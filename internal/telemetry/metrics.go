package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики конвейера скрининга.
var (
	// StageAttempts — количество попыток выполнения стадий по исходам.
	StageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "stage_attempts_total",
		Help:      "Stage execution attempts by stage and outcome.",
	}, []string{"stage", "outcome"})

	// StageDuration — длительность попыток выполнения стадий.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Stage attempt duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// StageReuses — срабатывания идемпотентного гейта (работа переиспользована).
	StageReuses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "stage_reuses_total",
		Help:      "Stage executions skipped by the idempotency gate.",
	}, []string{"stage"})

	// QueueDepth — текущая глубина очереди кандидатов.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Candidates waiting in the processing queue.",
	})

	// BusyWorkers — количество воркеров, занятых кандидатом.
	BusyWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "busy_workers",
		Help:      "Workers currently processing a candidate.",
	})

	// CandidatesFinished — кандидаты, достигшие терминального состояния.
	CandidatesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "pipeline",
		Name:      "candidates_finished_total",
		Help:      "Candidates reaching a terminal state.",
	}, []string{"state"})

	// FeedbackReceived — принятые inbound feedback-сообщения.
	FeedbackReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "feedback",
		Name:      "received_total",
		Help:      "Inbound stakeholder feedback messages by attribution result.",
	}, []string{"result"})

	// LeasesReclaimed — лизы, возвращённые janitor'ом в очередь.
	LeasesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "janitor",
		Name:      "leases_reclaimed_total",
		Help:      "Expired candidate leases re-queued by the janitor.",
	})

	// TokensPurged — истёкшие correlation-токены, удалённые janitor'ом.
	TokensPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kadra",
		Subsystem: "janitor",
		Name:      "tokens_purged_total",
		Help:      "Expired correlation tokens purged by the janitor.",
	})
)

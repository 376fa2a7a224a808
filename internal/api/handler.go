package api

import (
	"log/slog"

	"github.com/shaiso/Kadra/internal/feedback"
	"github.com/shaiso/Kadra/internal/mq"
	"github.com/shaiso/Kadra/internal/stage"
	"github.com/shaiso/Kadra/internal/store"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	candidates  store.Candidates
	jobs        store.Jobs
	audit       store.AuditLog
	evaluations store.Evaluations
	reconciler  *feedback.Reconciler
	documents   stage.ArtifactStore
	publisher   *mq.Publisher
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Candidates  store.Candidates
	Jobs        store.Jobs
	Audit       store.AuditLog
	Evaluations store.Evaluations
	Reconciler  *feedback.Reconciler

	// Documents — хранилище для загружаемых документов резюме.
	Documents stage.ArtifactStore

	// Publisher — опционален: nil отключает публикацию в MQ,
	// кандидатов подхватит polling конвейера.
	Publisher *mq.Publisher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		candidates:  cfg.Candidates,
		jobs:        cfg.Jobs,
		audit:       cfg.Audit,
		evaluations: cfg.Evaluations,
		reconciler:  cfg.Reconciler,
		documents:   cfg.Documents,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
	}
}

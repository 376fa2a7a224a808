// Kadra Pipeline — оркестратор обработки кандидатов.
//
// Pipeline:
//   - Получает новых кандидатов из RabbitMQ (с polling fallback)
//   - Прогоняет кандидата через стадии: parse, detect, fetch,
//     evaluate, report, notify
//   - Ведёт append-only журнал попыток и идемпотентные гейты
//   - Принимает feedback из очереди (reconciler)
//   - Возвращает истёкшие лизы и чистит токены (janitor)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Kadra/internal/ai"
	"github.com/shaiso/Kadra/internal/feedback"
	"github.com/shaiso/Kadra/internal/github"
	"github.com/shaiso/Kadra/internal/janitor"
	"github.com/shaiso/Kadra/internal/mq"
	"github.com/shaiso/Kadra/internal/notify"
	"github.com/shaiso/Kadra/internal/pipeline"
	"github.com/shaiso/Kadra/internal/repo"
	"github.com/shaiso/Kadra/internal/resume"
	"github.com/shaiso/Kadra/internal/stage"
	"github.com/shaiso/Kadra/internal/telemetry"
)

func main() {
	// .env удобен при локальной разработке; в продакшне его нет
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting kadra-pipeline")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	candidateRepo := repo.NewCandidateRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)
	evaluationRepo := repo.NewEvaluationRepo(pool)
	tokenRepo := repo.NewTokenRepo(pool)
	feedbackRepo := repo.NewFeedbackRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

	// RabbitMQ
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	// Адаптеры стадий
	resumeDir := os.Getenv("RESUME_DIR")
	if resumeDir == "" {
		resumeDir = "./data/resumes"
	}
	reportDir := os.Getenv("REPORT_DIR")
	if reportDir == "" {
		reportDir = "./data/reports"
	}

	documents := resume.NewFSStore(resumeDir)
	reports := resume.NewFSStore(reportDir)

	profiles := github.New(github.Config{
		Token: os.Getenv("GITHUB_TOKEN"),
	})

	completer := ai.New(ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("AI_MODEL"),
	})

	messenger := notify.NewTelegram(notify.Config{
		BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	})

	tokenTTL := 14 * 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			tokenTTL = d
		}
	}

	// Реестр executor'ов стадий
	registry := stage.NewRegistry(
		&stage.ParseExecutor{Documents: documents, Extractor: resume.NewExtractor()},
		&stage.DetectExecutor{},
		&stage.FetchExecutor{Profiles: profiles},
		&stage.EvaluateExecutor{AI: completer},
		&stage.ReportExecutor{Artifacts: reports},
		&stage.NotifyExecutor{Messenger: messenger},
	)

	// Создаём pipeline
	pipe := pipeline.New(pipeline.Config{
		Candidates:  candidateRepo,
		Audit:       auditRepo,
		Evaluations: evaluationRepo,
		Tokens:      tokenRepo,
		Jobs:        jobRepo,
		Registry:    registry,
		Conn:        mqConn,
		TokenTTL:    tokenTTL,
		Logger:      logger,
	})

	if err := pipe.Start(ctx); err != nil {
		logger.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}

	// Reconciler: feedback из очереди feedback.inbound
	reconciler := feedback.New(feedback.Config{
		Tokens:      tokenRepo,
		Feedback:    feedbackRepo,
		Candidates:  candidateRepo,
		Evaluations: evaluationRepo,
		Conn:        mqConn,
		Logger:      logger,
	})

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("failed to start reconciler", "error", err)
		os.Exit(1)
	}

	// Janitor: возврат истёкших лиз и чистка токенов
	jan := janitor.New(janitor.Config{
		Candidates: candidateRepo,
		Tokens:     tokenRepo,
		Logger:     logger,
	})

	if err := jan.Start(ctx); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("PIPELINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	jan.Stop()
	reconciler.Stop()
	pipe.Stop()
	logger.Info("kadra-pipeline stopped")
}

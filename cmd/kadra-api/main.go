// Kadra API — HTTP-интерфейс системы скрининга резюме.
//
// API:
//   - Принимает вакансии и резюме кандидатов
//   - Ставит кандидатов в очередь обработки (RabbitMQ или polling)
//   - Отдаёт состояние, журнал попыток и оценку кандидата
//   - Принимает feedback от заинтересованных лиц (webhook)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Kadra/internal/api"
	"github.com/shaiso/Kadra/internal/feedback"
	"github.com/shaiso/Kadra/internal/mq"
	"github.com/shaiso/Kadra/internal/repo"
	"github.com/shaiso/Kadra/internal/resume"
	"github.com/shaiso/Kadra/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kadra_api_http_requests_total",
		Help: "Total HTTP requests handled by kadra_api",
	})
)

func main() {
	// .env удобен при локальной разработке; в продакшне его нет
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting kadra-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	candidateRepo := repo.NewCandidateRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)
	evaluationRepo := repo.NewEvaluationRepo(pool)
	tokenRepo := repo.NewTokenRepo(pool)
	feedbackRepo := repo.NewFeedbackRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

	// RabbitMQ (опционально: без него кандидатов подхватит polling)
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, candidates will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Reconciler без MQ: API принимает feedback только через webhook,
	// consumer очереди живёт в kadra-pipeline
	reconciler := feedback.New(feedback.Config{
		Tokens:      tokenRepo,
		Feedback:    feedbackRepo,
		Candidates:  candidateRepo,
		Evaluations: evaluationRepo,
		Logger:      logger,
	})

	// Хранилище документов резюме
	resumeDir := os.Getenv("RESUME_DIR")
	if resumeDir == "" {
		resumeDir = "./data/resumes"
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Candidates:  candidateRepo,
		Jobs:        jobRepo,
		Audit:       auditRepo,
		Evaluations: evaluationRepo,
		Reconciler:  reconciler,
		Documents:   resume.NewFSStore(resumeDir),
		Publisher:   publisher,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/mq"
	"github.com/shaiso/Kadra/internal/store"
	"github.com/shaiso/Kadra/internal/telemetry"
)

var (
	// ErrUnknownToken — correlation-токен не найден.
	ErrUnknownToken = errors.New("unknown correlation token")

	// ErrTokenExpired — correlation-токен истёк.
	ErrTokenExpired = errors.New("correlation token expired")

	// ErrInvalidDecision — решение вне множества {interview, decline, comment}.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Submission — одно inbound-сообщение от заинтересованного лица.
type Submission struct {
	// Token — correlation-токен из текста ответа.
	Token string

	// MessageID — идентификатор сообщения у провайдера (ключ дедупликации).
	MessageID string

	StakeholderID   string
	StakeholderName string
	StakeholderRole string

	// Decision — interview, decline или comment.
	Decision domain.Decision

	Comment string
}

// Reconciler привязывает inbound feedback к кандидатам.
type Reconciler struct {
	tokens      store.Tokens
	feedback    store.Feedback
	candidates  store.Candidates
	evaluations store.Evaluations

	// MQ (опционально; nil — только HTTP webhook)
	conn     *mq.Connection
	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Reconciler.
type Config struct {
	Tokens      store.Tokens
	Feedback    store.Feedback
	Candidates  store.Candidates
	Evaluations store.Evaluations

	// Conn — соединение с RabbitMQ (nil — feedback приходит только
	// через HTTP webhook).
	Conn *mq.Connection

	Logger *slog.Logger
}

// New создаёт Reconciler.
func New(cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tokens:      cfg.Tokens,
		feedback:    cfg.Feedback,
		candidates:  cfg.Candidates,
		evaluations: cfg.Evaluations,
		conn:        cfg.Conn,
		logger:      logger,
	}
}

// Start запускает consumer для feedback.inbound (если есть MQ).
func (r *Reconciler) Start(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueFeedbackInbound),
		Handler:  r.handleInbound,
		Prefetch: 10,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("feedback consumer error", "error", err)
		}
	}()

	r.logger.Info("reconciler started")
	return nil
}

// Stop останавливает Reconciler.
func (r *Reconciler) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	if r.consumer != nil {
		r.consumer.Stop()
	}
	r.wg.Wait()
}

// Submit принимает одно inbound-сообщение.
//
// Повторная доставка того же MessageID — no-op: возвращается ранее
// записанный feedback без новой записи, created=false. Неизвестный или
// истёкший токен — ошибка атрибуции: сообщение не привязывается ни к
// какому кандидату.
func (r *Reconciler) Submit(ctx context.Context, sub Submission) (*domain.StakeholderFeedback, bool, error) {
	if !sub.Decision.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidDecision, sub.Decision)
	}

	// Дедупликация по идентификатору сообщения провайдера
	if existing, err := r.feedback.GetByMessageID(ctx, sub.MessageID); err == nil {
		telemetry.FeedbackReceived.WithLabelValues("duplicate").Inc()
		r.logger.Debug("duplicate feedback message ignored", "message_id", sub.MessageID)
		return existing, false, nil
	}

	token, err := r.tokens.Resolve(ctx, sub.Token)
	if err != nil {
		telemetry.FeedbackReceived.WithLabelValues("unknown_token").Inc()
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownToken, sub.Token)
	}
	if token.Expired(time.Now()) {
		telemetry.FeedbackReceived.WithLabelValues("expired_token").Inc()
		return nil, false, fmt.Errorf("%w: %q", ErrTokenExpired, sub.Token)
	}

	fb := &domain.StakeholderFeedback{
		ID:              uuid.New(),
		CandidateID:     token.CandidateID,
		EvaluationID:    token.EvaluationID,
		StakeholderID:   sub.StakeholderID,
		StakeholderName: sub.StakeholderName,
		StakeholderRole: sub.StakeholderRole,
		Decision:        sub.Decision,
		Comment:         sub.Comment,
		MessageID:       sub.MessageID,
		ReceivedAt:      time.Now(),
	}

	// Поздний feedback допустим и помечается, но кандидата не трогает:
	// конвейер никогда не переоткрывается по feedback
	if c, err := r.candidates.Get(ctx, token.CandidateID); err == nil && c.State.IsTerminal() {
		fb.PostCompletion = true
	}

	// Расхождение с записанной рекомендацией помечается, рекомендация
	// не мутируется
	if ev, err := r.evaluations.GetByCandidate(ctx, token.CandidateID); err == nil {
		if sub.Decision != domain.DecisionComment && string(sub.Decision) != string(ev.Recommendation) {
			fb.Conflicting = true
		}
	}

	if err := r.feedback.Append(ctx, fb); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Гонка двух доставок одного сообщения
			telemetry.FeedbackReceived.WithLabelValues("duplicate").Inc()
			existing, err := r.feedback.GetByMessageID(ctx, sub.MessageID)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("append feedback: %w", err)
	}

	telemetry.FeedbackReceived.WithLabelValues("accepted").Inc()
	r.logger.Info("feedback recorded",
		"candidate_id", fb.CandidateID,
		"decision", fb.Decision,
		"post_completion", fb.PostCompletion,
		"conflicting", fb.Conflicting,
	)
	return fb, true, nil
}

// History возвращает полную историю feedback по кандидату.
func (r *Reconciler) History(ctx context.Context, candidateID uuid.UUID) ([]domain.StakeholderFeedback, error) {
	return r.feedback.History(ctx, candidateID)
}

// handleInbound обрабатывает feedback.inbound из MQ.
func (r *Reconciler) handleInbound(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.FeedbackInboundPayload](&d.Message)
	if err != nil {
		return fmt.Errorf("parse feedback.inbound payload: %w", err)
	}

	_, _, err = r.Submit(ctx, Submission{
		Token:           payload.Token,
		MessageID:       payload.MessageID,
		StakeholderID:   payload.StakeholderID,
		StakeholderName: payload.StakeholderName,
		StakeholderRole: payload.StakeholderRole,
		Decision:        domain.Decision(payload.Decision),
		Comment:         payload.Comment,
	})
	if err != nil {
		// Ошибка атрибуции не ретраится: повторная доставка даст тот же
		// результат. Логируем и подтверждаем сообщение.
		r.logger.Warn("inbound feedback rejected", "message_id", payload.MessageID, "error", err)
	}
	return nil
}

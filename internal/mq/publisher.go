package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeCandidateSubmitted MessageType = "candidate.submitted"
	MessageTypeFeedbackInbound    MessageType = "feedback.inbound"
)

// Message — конверт сообщения: идентификатор, тип, payload и время создания.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// CandidateSubmittedPayload — payload для события о новом кандидате.
type CandidateSubmittedPayload struct {
	CandidateID uuid.UUID `json:"candidate_id"`

	// Force — форсированный проход при reprocess: идемпотентные гейты
	// игнорируются, уведомление доставляется заново.
	Force bool `json:"force,omitempty"`
}

// FeedbackInboundPayload — payload для inbound feedback от провайдера сообщений.
type FeedbackInboundPayload struct {
	// MessageID — идентификатор сообщения у провайдера (ключ дедупликации).
	MessageID string `json:"message_id"`

	// Token — correlation-токен из текста ответа.
	Token string `json:"token"`

	StakeholderID   string `json:"stakeholder_id"`
	StakeholderName string `json:"stakeholder_name,omitempty"`
	StakeholderRole string `json:"stakeholder_role,omitempty"`

	// Decision — interview, decline или comment.
	Decision string `json:"decision"`

	Comment string `json:"comment,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish сериализует сообщение и публикует его в exchange с заданным ключом.
// DeliveryMode persistent: сообщение переживает рестарт брокера.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, pub); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}
		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishCandidateSubmitted публикует событие о новом кандидате.
// Потребитель: Pipeline.
func (p *Publisher) PublishCandidateSubmitted(ctx context.Context, candidateID uuid.UUID, force bool) error {
	msg := newMessage(MessageTypeCandidateSubmitted, CandidateSubmittedPayload{CandidateID: candidateID, Force: force})
	return p.Publish(ctx, ExchangeCandidates, RoutingKeySubmitted, msg)
}

// PublishFeedbackInbound публикует inbound feedback.
// Потребитель: Reconciler.
func (p *Publisher) PublishFeedbackInbound(ctx context.Context, payload FeedbackInboundPayload) error {
	return p.Publish(ctx, ExchangeFeedback, RoutingKeyInbound, newMessage(MessageTypeFeedbackInbound, payload))
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, routingKey, newMessage(msgType, payload))
}

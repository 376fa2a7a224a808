package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeCandidates Exchange = "kadra.candidates"
	ExchangeFeedback   Exchange = "kadra.feedback"
	ExchangeDLQ        Exchange = "kadra.dlq"
)

// Queues — имена очередей.
const (
	QueueCandidatesSubmitted Queue = "candidates.submitted"
	QueueFeedbackInbound     Queue = "feedback.inbound"
	QueueDLQCandidates       Queue = "dlq.candidates"
)

// Routing keys.
const (
	RoutingKeySubmitted     RoutingKey = "submitted"
	RoutingKeyInbound       RoutingKey = "inbound"
	RoutingKeyDLQCandidates RoutingKey = "candidates"
)

// SetupTopology декларирует обменники, очереди и привязки.
// Операция идемпотентна: повторный вызов на живом брокере безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeCandidates, ExchangeFeedback, ExchangeDLQ} {
		// durable, без auto-delete: топология переживает рестарт брокера
		err := ch.ExchangeDeclare(string(name), "direct", true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCandidates),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// candidates.submitted — с DLQ (кандидат может уйти в DLQ
		// после исчерпания retry доставки)
		{QueueCandidatesSubmitted, dlqArgs},

		// feedback.inbound — без DLQ (повторная доставка безопасна:
		// reconciler дедуплицирует по message_id)
		{QueueFeedbackInbound, nil},

		// dlq.candidates — сама DLQ очередь
		{QueueDLQCandidates, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue    Queue
		key      RoutingKey
		exchange Exchange
	}{
		{QueueCandidatesSubmitted, RoutingKeySubmitted, ExchangeCandidates},
		{QueueFeedbackInbound, RoutingKeyInbound, ExchangeFeedback},
		{QueueDLQCandidates, RoutingKeyDLQCandidates, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Kadra RabbitMQ Topology:

    kadra.candidates (direct)
    └── candidates.submitted [routing: submitted]
            Consumer: Pipeline
            DLQ: dlq.candidates

    kadra.feedback (direct)
    └── feedback.inbound [routing: inbound]
            Consumer: Reconciler

    kadra.dlq (direct)
    └── dlq.candidates [routing: candidates]
            Manual processing
  `
}

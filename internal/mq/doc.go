// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - candidate.submitted — новый кандидат ожидает скрининга
//   - feedback.inbound    — ответ заинтересованного лица на уведомление
//
// Exchanges:
//   - kadra.candidates — события кандидатов
//   - kadra.feedback   — inbound feedback
//   - kadra.dlq        — dead letter queue
package mq

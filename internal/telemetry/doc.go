// Package telemetry — наблюдаемость конвейера скрининга.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus-метрики стадий, очереди и feedback
//
// Оба процесса (API и pipeline) используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry

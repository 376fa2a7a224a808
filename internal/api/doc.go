// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (хранилища, publisher, reconciler, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - candidate_handler.go — обработчики для /candidates
//   - feedback_handler.go  — обработчики для /feedback
//   - job_handler.go       — обработчики для /jobs
//
// API предоставляет REST endpoints для подачи резюме, управления
// обработкой кандидатов и приёма feedback от заинтересованных лиц.
package api

// Package pipeline — оркестратор конвейера скрининга кандидатов.
//
// Pipeline — центральный компонент системы, который:
//   - Получает новых кандидатов из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued кандидатов в БД (polling fallback)
//   - Ведёт кандидата через стадии: parse → detect → fetch → evaluate →
//     report → notify
//   - Применяет политику retry каждой стадии и пишет каждую попытку
//     в append-only журнал
//   - Переиспользует уже выполненную работу через идемпотентный гейт
//     по fingerprint входа
//   - Захватывает лизу на кандидата через compare-and-swap в хранилище,
//     поэтому взаимное исключение переживает рестарт процесса
//
// Параллельность ограничена пулом воркеров; кандидаты сверх ёмкости пула
// ждут в bounded-очереди, перелив подхватывается polling fallback.
package pipeline

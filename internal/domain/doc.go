// Package domain содержит модель данных Kadra.
//
// Основные сущности:
//   - Candidate — единица работы: одно резюме, проходящее через конвейер
//   - AuditEntry — неизменяемая запись одной попытки выполнения стадии
//   - Evaluation — результат AI-оценки (не более одной на кандидата)
//   - StakeholderFeedback — решения заинтересованных лиц (append-only)
//   - CorrelationToken — привязка уведомления к (кандидат, оценка)
//
// Здесь же живут машина состояний кандидата (таблица переходов),
// порядок стадий конвейера, политика retry и таксономия ошибок.
package domain

// Package feedback — приём и согласование решений заинтересованных лиц.
//
// Reconciler привязывает inbound-сообщения к кандидатам исключительно по
// correlation-токену из уведомления: сопоставление по имени в свободном
// тексте не используется никогда. Повторная доставка дедуплицируется по
// идентификатору сообщения провайдера. Feedback append-only и никогда не
// переоткрывает конвейер и не мутирует записанную рекомендацию.
//
// Противоречивые решения сохраняются все; агрегация — презентационная
// политика поверх полной истории (most-recent, role-precedence, majority).
package feedback

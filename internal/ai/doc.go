// Package ai — адаптер сервиса AI-комплишенов для оценки кандидатов.
//
// Пакет отвечает за три вещи: детерминированную сборку промпта из
// описания вакансии, текста резюме и данных профиля; вызов модели через
// OpenAI-совместимый API; строгий разбор и валидацию структурированного
// ответа. Ответ, не прошедший валидацию схемы, классифицируется как
// malformed и получает отдельный бюджет retry у оркестратора.
package ai

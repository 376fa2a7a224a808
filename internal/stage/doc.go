// Package stage содержит executor'ы стадий конвейера скрининга.
//
// Каждая стадия реализует единый контракт Executor: выполняет один шаг
// над изолированным контекстом кандидата и возвращает результат с исходом
// success/degraded либо классифицированную ошибку. Политика retry и все
// побочные эффекты в хранилище принадлежат оркестратору (internal/pipeline);
// стадия общается с внешним миром только через узкие интерфейсы адаптеров.
package stage

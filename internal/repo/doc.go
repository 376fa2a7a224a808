// Package repo — Postgres-реализация интерфейсов хранилища (internal/store).
//
// Репозитории возвращают ошибки store.ErrNotFound / store.ErrAlreadyExists /
// store.ErrConflict, поэтому вызывающий код не различает in-memory и
// durable-реализацию. Compare-and-swap выражен через условный UPDATE по
// версии; уникальность — через ON CONFLICT DO NOTHING с проверкой
// затронутых строк.
package repo

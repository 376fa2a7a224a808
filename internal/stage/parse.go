package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
)

// ParseExecutor — executor стадии resume_parsing.
//
// Загружает документ резюме из хранилища и извлекает из него плоский
// текст. Пустой или нечитаемый документ — постоянная ошибка: retry
// не изменит содержимое файла.
//
// Outputs:
//   - text (string): извлечённый текст резюме
//   - filename (string): исходное имя файла
//   - chars (int): длина текста в символах
type ParseExecutor struct {
	Documents DocumentStore
	Extractor TextExtractor
}

// Stage возвращает имя стадии.
func (e *ParseExecutor) Stage() domain.Stage { return domain.StageParse }

// Policy возвращает политику retry стадии.
func (e *ParseExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:  3,
		Backoff:      "fixed",
		InitialDelay: time.Second,
		Timeout:      30 * time.Second,
	}
}

// Fingerprint строится по ссылке на документ: тот же файл — тот же вход.
func (e *ParseExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"resume_ref": ec.Candidate.ResumeRef,
	})
}

// Execute загружает документ и извлекает текст.
func (e *ParseExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	data, filename, err := e.Documents.Fetch(ctx, ec.Candidate.ResumeRef)
	if err != nil {
		// Хранилище может быть временно недоступно
		return nil, domain.Transient(fmt.Errorf("fetch resume %q: %w", ec.Candidate.ResumeRef, err))
	}

	text, err := e.Extractor.Extract(data, filename)
	if err != nil {
		return nil, fmt.Errorf("extract text from %q: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyDocument, filename)
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output: map[string]any{
			"text":     text,
			"filename": filename,
			"chars":    len(text),
		},
		Detail: fmt.Sprintf("extracted %d chars from %s", len(text), filename),
	}, nil
}

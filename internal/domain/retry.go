package domain

import (
	"errors"
	"time"
)

// RetryPolicy — политика повторных попыток стадии.
//
// Явное, инспектируемое значение вместо скрытого поведения: максимум попыток,
// кривая backoff и классификация ошибок задаются декларацией стадии, что
// позволяет детерминированно тестировать исчерпание retry.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelay — начальная задержка перед retry.
	InitialDelay time.Duration `json:"initial_delay,omitempty"`

	// MaxDelay — максимальная задержка.
	MaxDelay time.Duration `json:"max_delay,omitempty"`

	// Timeout — таймаут одной попытки (внешние вызовы должны быть отменяемы).
	Timeout time.Duration `json:"timeout,omitempty"`

	// MalformedAttempts — отдельный бюджет попыток для структурно
	// невалидных ответов (ClassMalformed). 0 — класс не применим к стадии.
	MalformedAttempts int `json:"malformed_attempts,omitempty"`
}

// Delay вычисляет задержку перед попыткой attempt+1.
//
// RetryAfter, сообщённый провайдером (rate-limit reset), имеет приоритет
// над расчётной задержкой.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	if after, ok := RetryAfter(err); ok && after > 0 {
		return after
	}

	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch p.Backoff {
	case "exponential":
		delay = initial
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initial
		delay = initial
	}

	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// ErrorClass — класс ошибки стадии в таксономии конвейера.
type ErrorClass int

const (
	// ClassPermanent — ошибка валидации или другой невосстановимый случай:
	// стадия падает немедленно, без retry.
	ClassPermanent ErrorClass = iota

	// ClassTransient — временная ошибка (timeout, rate-limit, 5xx):
	// retry в пределах бюджета стадии.
	ClassTransient

	// ClassDegradable — опциональные внешние данные недоступны:
	// стадия помечается degraded, конвейер продолжается.
	ClassDegradable

	// ClassMalformed — внешний сервис ответил, но ответ структурно
	// невалиден: retry по отдельному бюджету MalformedAttempts,
	// не смешивается с бюджетом сетевых ошибок.
	ClassMalformed
)

// TransientError — временная ошибка внешнего вызова.
type TransientError struct {
	Err error

	// RetryAfter — подсказка провайдера, когда можно повторить (0 — нет).
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// DegradedError — опциональные данные недоступны, конвейер может продолжаться.
type DegradedError struct {
	// Reason — машинное имя причины (попадает в Evaluation.Degradations).
	Reason string

	Err error
}

func (e *DegradedError) Error() string { return e.Err.Error() }
func (e *DegradedError) Unwrap() error { return e.Err }

// MalformedError — структурно невалидный ответ внешнего сервиса.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string { return e.Err.Error() }
func (e *MalformedError) Unwrap() error { return e.Err }

// Transient оборачивает ошибку как временную.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// TransientAfter оборачивает ошибку как временную с подсказкой retry-after.
func TransientAfter(err error, after time.Duration) error {
	return &TransientError{Err: err, RetryAfter: after}
}

// Degraded оборачивает ошибку как деградируемую с машинной причиной.
func Degraded(reason string, err error) error {
	return &DegradedError{Reason: reason, Err: err}
}

// Malformed оборачивает ошибку как структурно невалидный ответ.
func Malformed(err error) error {
	return &MalformedError{Err: err}
}

// Classify возвращает класс ошибки. Необёрнутые ошибки считаются
// постоянными: retry заслуживают только явно помеченные случаи.
func Classify(err error) ErrorClass {
	var te *TransientError
	if errors.As(err, &te) {
		return ClassTransient
	}
	var de *DegradedError
	if errors.As(err, &de) {
		return ClassDegradable
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return ClassMalformed
	}
	return ClassPermanent
}

// RetryAfter извлекает подсказку retry-after из временной ошибки.
func RetryAfter(err error) (time.Duration, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter, true
	}
	return 0, false
}

// DegradationReason извлекает причину деградации из ошибки.
func DegradationReason(err error) (string, bool) {
	var de *DegradedError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}

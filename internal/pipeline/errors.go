package pipeline

import "errors"

var (
	// ErrTerminalState — операция неприменима к кандидату в терминальном
	// состоянии.
	ErrTerminalState = errors.New("candidate is in a terminal state")

	// ErrNotTerminal — reprocess допустим только из терминального состояния.
	ErrNotTerminal = errors.New("candidate is not in a terminal state")

	// ErrAlreadyQueued — кандидат уже ожидает обработки или обрабатывается.
	ErrAlreadyQueued = errors.New("candidate is already queued or processing")

	// ErrInvalidTransition — попытка недопустимого перехода состояния.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRetryExhausted — бюджет retry стадии исчерпан.
	ErrRetryExhausted = errors.New("stage retry budget exhausted")

	// ErrAborted — обработка прервана по запросу оператора.
	ErrAborted = errors.New("processing aborted by operator")
)

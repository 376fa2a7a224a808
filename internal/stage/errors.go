package stage

import "errors"

var (
	// ErrUnknownStage — стадия не зарегистрирована в реестре.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrEmptyDocument — из документа не удалось извлечь текст.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrNoResumeText — стадия требует текст резюме, а его нет в контексте.
	ErrNoResumeText = errors.New("resume text missing from context")

	// ErrNoEvaluation — стадия требует оценку, а её нет в контексте.
	ErrNoEvaluation = errors.New("evaluation missing from context")
)

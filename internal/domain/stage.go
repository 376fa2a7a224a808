package domain

// Stage — одна дискретная стадия конвейера.
type Stage string

const (
	// StageParse — извлечение текста из резюме.
	StageParse Stage = "resume_parsing"

	// StageDetect — поиск идентификатора профиля в тексте резюме.
	StageDetect Stage = "profile_detection"

	// StageFetch — загрузка данных профиля с code-hosting площадки.
	StageFetch Stage = "profile_fetch"

	// StageEvaluate — AI-оценка кандидата.
	StageEvaluate Stage = "ai_evaluation"

	// StageReport — генерация документа с оценкой.
	StageReport Stage = "report_generation"

	// StageNotify — отправка уведомления заинтересованным лицам.
	StageNotify Stage = "notification"
)

// Stages — стадии конвейера в порядке выполнения.
var Stages = []Stage{
	StageParse,
	StageDetect,
	StageFetch,
	StageEvaluate,
	StageReport,
	StageNotify,
}

// stageStates — соответствие стадии и состояния кандидата во время её выполнения.
var stageStates = map[Stage]CandidateState{
	StageParse:    StateParsingResume,
	StageDetect:   StateDetectingProfile,
	StageFetch:    StateFetchingProfile,
	StageEvaluate: StateEvaluating,
	StageReport:   StateGeneratingReport,
	StageNotify:   StateNotifying,
}

// StateFor возвращает состояние кандидата, соответствующее выполнению стадии.
func StateFor(stage Stage) CandidateState {
	return stageStates[stage]
}

// NextStage возвращает следующую стадию и true, либо false если stage — последняя.
// Пустая стадия (кандидат в SUBMITTED) даёт первую стадию конвейера.
func NextStage(stage Stage) (Stage, bool) {
	if stage == "" {
		return Stages[0], true
	}
	for i, s := range Stages {
		if s == stage {
			if i+1 < len(Stages) {
				return Stages[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// StageIndex возвращает позицию стадии в конвейере (-1 для неизвестной).
func StageIndex(stage Stage) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

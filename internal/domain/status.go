package domain

// CandidateState — состояние кандидата в конвейере.
//
// Жизненный цикл:
//
//	SUBMITTED → PARSING_RESUME → DETECTING_PROFILE → FETCHING_PROFILE_DATA
//	          → EVALUATING → GENERATING_REPORT → NOTIFYING → COMPLETED
//
// Из любого нетерминального состояния возможен переход в FAILED.
// FAILED → SUBMITTED разрешён только явной административной командой
// Reprocess, никогда автоматически.
type CandidateState string

const (
	// StateSubmitted — кандидат создан, ожидает обработки.
	StateSubmitted CandidateState = "SUBMITTED"

	// StateParsingResume — извлечение текста из резюме.
	StateParsingResume CandidateState = "PARSING_RESUME"

	// StateDetectingProfile — поиск идентификатора профиля в тексте резюме.
	StateDetectingProfile CandidateState = "DETECTING_PROFILE"

	// StateFetchingProfile — загрузка данных профиля с code-hosting площадки.
	StateFetchingProfile CandidateState = "FETCHING_PROFILE_DATA"

	// StateEvaluating — AI-оценка кандидата.
	StateEvaluating CandidateState = "EVALUATING"

	// StateGeneratingReport — генерация документа с оценкой.
	StateGeneratingReport CandidateState = "GENERATING_REPORT"

	// StateNotifying — отправка уведомления заинтересованным лицам.
	StateNotifying CandidateState = "NOTIFYING"

	// StateCompleted — конвейер успешно завершён.
	StateCompleted CandidateState = "COMPLETED"

	// StateFailed — конвейер завершён с ошибкой (причина в Candidate.Error).
	StateFailed CandidateState = "FAILED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s CandidateState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// transitions — таблица допустимых переходов.
//
// Переход легален только из точного текущего состояния в его определённого
// преемника. Любой другой запрос перехода — конфликт, а не тихий рестарт.
var transitions = map[CandidateState][]CandidateState{
	StateSubmitted:        {StateParsingResume, StateFailed},
	StateParsingResume:    {StateDetectingProfile, StateFailed},
	StateDetectingProfile: {StateFetchingProfile, StateFailed},
	StateFetchingProfile:  {StateEvaluating, StateFailed},
	StateEvaluating:       {StateGeneratingReport, StateFailed},
	StateGeneratingReport: {StateNotifying, StateFailed},
	StateNotifying:        {StateCompleted, StateFailed},

	// Только через административный Reprocess.
	StateFailed: {StateSubmitted},

	StateCompleted: {},
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to CandidateState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkStatus — суб-статус владения, ортогональный состоянию конвейера.
//
// Отслеживает, владеет ли кандидатом воркер в данный момент.
type WorkStatus string

const (
	// WorkIdle — кандидат никем не обрабатывается и не стоит в очереди.
	WorkIdle WorkStatus = "IDLE"

	// WorkQueued — кандидат поставлен в очередь, лиза захвачена.
	WorkQueued WorkStatus = "QUEUED"

	// WorkProcessing — воркер выполняет стадии конвейера.
	WorkProcessing WorkStatus = "PROCESSING"
)

// Outcome — исход одной попытки выполнения стадии.
type Outcome string

const (
	// OutcomeSuccess — стадия выполнена полностью.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeDegraded — стадия не выполнена полностью, но конвейер продолжается.
	OutcomeDegraded Outcome = "DEGRADED"

	// OutcomeFailed — стадия упала (после всех retry).
	OutcomeFailed Outcome = "FAILED"
)

// Recommendation — рекомендация по кандидату из AI-оценки.
type Recommendation string

const (
	RecommendationInterview Recommendation = "interview"
	RecommendationDecline   Recommendation = "decline"
)

// Valid проверяет, что рекомендация принимает одно из допустимых значений.
func (r Recommendation) Valid() bool {
	return r == RecommendationInterview || r == RecommendationDecline
}

// Decision — решение заинтересованного лица из inbound feedback.
type Decision string

const (
	DecisionInterview Decision = "interview"
	DecisionDecline   Decision = "decline"

	// DecisionComment — комментарий без решения.
	DecisionComment Decision = "comment"
)

// Valid проверяет, что решение принимает одно из допустимых значений.
func (d Decision) Valid() bool {
	switch d {
	case DecisionInterview, DecisionDecline, DecisionComment:
		return true
	default:
		return false
	}
}

package stage

import (
	"context"

	"github.com/shaiso/Kadra/internal/domain"
)

// ExecContext — изолированный контекст выполнения одного кандидата.
//
// Контекст создаётся оркестратором на время одного прохода конвейера и
// никогда не виден выполнению другого кандидата: распарсенный текст,
// загруженный профиль и промежуточные результаты не пересекают границу
// кандидата. Это инвариант изоляции данных, ради которого система существует.
type ExecContext struct {
	// Candidate — снимок записи кандидата на момент запуска.
	Candidate *domain.Candidate

	// Job — описание вакансии, по которой идёт оценка.
	Job *domain.JobDescription

	// Outputs — результаты завершённых стадий (stage → output).
	// Именно их спецификация контракта называет priorStageOutputs.
	Outputs map[domain.Stage]map[string]any

	// Evaluation — оценка, появившаяся после стадии ai_evaluation.
	Evaluation *domain.Evaluation

	// Degradations — накопленные причины деградации конвейера.
	Degradations []string

	// Force — форсировать side effects, гейтящиеся флагами
	// (повторная отправка уведомления при административном reprocess --force).
	Force bool
}

// NewExecContext создаёт контекст для одного прохода конвейера.
func NewExecContext(c *domain.Candidate, job *domain.JobDescription) *ExecContext {
	return &ExecContext{
		Candidate: c,
		Job:       job,
		Outputs:   make(map[domain.Stage]map[string]any),
	}
}

// SetOutput записывает результат стадии в контекст.
func (ec *ExecContext) SetOutput(stage domain.Stage, output map[string]any) {
	ec.Outputs[stage] = output
}

// OutputString возвращает строковое значение из результата стадии.
func (ec *ExecContext) OutputString(stage domain.Stage, key string) string {
	if out, ok := ec.Outputs[stage]; ok {
		if v, ok := out[key].(string); ok {
			return v
		}
	}
	return ""
}

// OutputBool возвращает булево значение из результата стадии.
func (ec *ExecContext) OutputBool(stage domain.Stage, key string) bool {
	if out, ok := ec.Outputs[stage]; ok {
		if v, ok := out[key].(bool); ok {
			return v
		}
	}
	return false
}

// OutputMap возвращает вложенный объект из результата стадии.
func (ec *ExecContext) OutputMap(stage domain.Stage, key string) map[string]any {
	if out, ok := ec.Outputs[stage]; ok {
		if v, ok := out[key].(map[string]any); ok {
			return v
		}
	}
	return nil
}

// Degrade добавляет причину деградации (без дубликатов).
func (ec *ExecContext) Degrade(reason string) {
	for _, d := range ec.Degradations {
		if d == reason {
			return
		}
	}
	ec.Degradations = append(ec.Degradations, reason)
}

// Result — результат одной попытки выполнения стадии.
type Result struct {
	// Outcome — исход попытки.
	Outcome domain.Outcome

	// Output — данные для следующих стадий и для записи в журнал
	// (переиспользуются идемпотентным гейтом при reprocess).
	Output map[string]any

	// Detail — человекочитаемое описание для журнала.
	Detail string
}

// Executor — единый контракт стадии конвейера.
//
// Executor выполняет один шаг и возвращает Result либо ошибку.
// Классификация ошибки (transient/permanent/degradable/malformed) — через
// типы из domain; политику retry применяет оркестратор, не executor.
type Executor interface {
	// Stage возвращает имя стадии.
	Stage() domain.Stage

	// Policy возвращает политику retry стадии.
	Policy() domain.RetryPolicy

	// Fingerprint возвращает хэш входа стадии для идемпотентного гейта.
	Fingerprint(ec *ExecContext) string

	// Execute выполняет одну попытку стадии.
	Execute(ctx context.Context, ec *ExecContext) (*Result, error)
}

// --- Интерфейсы внешних коллабораторов ---
//
// Конвейер видит внешние системы только через эти узкие интерфейсы;
// конкретные адаптеры живут в internal/resume, internal/ai,
// internal/github и internal/notify.

// DocumentStore — хранилище загруженных документов.
type DocumentStore interface {
	// Fetch возвращает содержимое и имя файла по ссылке.
	Fetch(ctx context.Context, ref string) (data []byte, filename string, err error)
}

// ArtifactStore — приёмник сгенерированных артефактов (документов с оценкой).
type ArtifactStore interface {
	// Put сохраняет артефакт и возвращает ссылку на него.
	Put(ctx context.Context, name string, data []byte) (ref string, err error)
}

// TextExtractor — извлечение текста из документа резюме.
type TextExtractor interface {
	Extract(data []byte, filename string) (string, error)
}

// ProfileFetcher — клиент code-hosting площадки.
type ProfileFetcher interface {
	// FetchProfile возвращает профиль, репозитории и вычисленные метрики.
	FetchProfile(ctx context.Context, login string) (map[string]any, error)
}

// Completer — сервис AI-комплишенов.
type Completer interface {
	// Complete возвращает сырой текст ответа модели на промпт.
	Complete(ctx context.Context, prompt string) (string, error)

	// Model возвращает имя используемой модели.
	Model() string
}

// Messenger — сервис доставки уведомлений.
type Messenger interface {
	// Send доставляет сообщение с вшитым correlation-токеном,
	// возвращает идентификатор доставки у провайдера.
	Send(ctx context.Context, text, token string) (deliveryID string, err error)
}

// Registry — реестр executor'ов по стадии.
type Registry struct {
	executors map[domain.Stage]Executor
}

// NewRegistry создаёт реестр из переданных executor'ов.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[domain.Stage]Executor)}
	for _, e := range executors {
		r.executors[e.Stage()] = e
	}
	return r
}

// Register добавляет executor (замещая существующий для той же стадии).
func (r *Registry) Register(e Executor) {
	r.executors[e.Stage()] = e
}

// Get возвращает executor для стадии.
func (r *Registry) Get(stage domain.Stage) (Executor, error) {
	e, ok := r.executors[stage]
	if !ok {
		return nil, ErrUnknownStage
	}
	return e, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/feedback"
	"github.com/shaiso/Kadra/internal/stage"
	"github.com/shaiso/Kadra/internal/store"
)

// --- Фейки внешних коллабораторов ---

type fakeDocs struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func (f *fakeDocs) Fetch(_ context.Context, ref string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, "", f.err
	}
	text, ok := f.files[ref]
	if !ok {
		return nil, "", errors.New("document not found: " + ref)
	}
	return []byte(text), "resume.txt", nil
}

type passthroughExtractor struct{}

func (passthroughExtractor) Extract(data []byte, _ string) (string, error) {
	return string(data), nil
}

type fakeProfiles struct {
	mu    sync.Mutex
	fn    func(login string) (map[string]any, error)
	calls int
}

func (f *fakeProfiles) FetchProfile(_ context.Context, login string) (map[string]any, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return map[string]any{"login": login, "public_repos": 1}, nil
	}
	return fn(login)
}

type fakeAI struct {
	mu    sync.Mutex
	fn    func(call int, prompt string) (string, error)
	calls int
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return `{"overall_score": 8, "recommendation": "interview", "summary": "ok"}`, nil
	}
	return fn(call, prompt)
}

func (f *fakeAI) Model() string { return "test-model" }

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReports struct {
	mu     sync.Mutex
	stored map[string][]byte
	err    error
}

func (f *fakeReports) Put(_ context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[name] = data
	return "reports/" + name, nil
}

type fakeMessenger struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakeMessenger) Send(_ context.Context, _, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.tokens = append(f.tokens, token)
	return fmt.Sprintf("msg-%d", len(f.tokens)), nil
}

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// fastExec подменяет политику retry стадии на быструю, чтобы тесты
// не спали секундами между попытками.
type fastExec struct {
	stage.Executor
}

func (f fastExec) Policy() domain.RetryPolicy {
	p := f.Executor.Policy()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	return p
}

// --- Тестовая обвязка ---

type harness struct {
	mem       *store.Memory
	docs      *fakeDocs
	profiles  *fakeProfiles
	ai        *fakeAI
	reports   *fakeReports
	messenger *fakeMessenger
	pipe      *Pipeline
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		mem:       store.NewMemory(),
		docs:      &fakeDocs{files: make(map[string]string)},
		profiles:  &fakeProfiles{},
		ai:        &fakeAI{},
		reports:   &fakeReports{},
		messenger: &fakeMessenger{},
	}

	registry := stage.NewRegistry(
		fastExec{&stage.ParseExecutor{Documents: h.docs, Extractor: passthroughExtractor{}}},
		&stage.DetectExecutor{},
		fastExec{&stage.FetchExecutor{Profiles: h.profiles}},
		fastExec{&stage.EvaluateExecutor{AI: h.ai}},
		fastExec{&stage.ReportExecutor{Artifacts: h.reports}},
		fastExec{&stage.NotifyExecutor{Messenger: h.messenger}},
	)

	cfg.Candidates = h.mem.Candidates()
	cfg.Audit = h.mem.Audit()
	cfg.Evaluations = h.mem.Evaluations()
	cfg.Tokens = h.mem.Tokens()
	cfg.Jobs = h.mem.Jobs()
	cfg.Registry = registry
	cfg.Logger = slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	h.pipe = New(cfg)
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (h *harness) addJob(t *testing.T) *domain.JobDescription {
	t.Helper()
	job := &domain.JobDescription{
		ID:             uuid.New(),
		Title:          "Go Developer",
		RequiredSkills: []string{"go"},
	}
	if err := h.mem.Jobs().Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func (h *harness) addCandidate(t *testing.T, job *domain.JobDescription, resumeText string) *domain.Candidate {
	t.Helper()
	c := domain.NewCandidate("Jane Doe", "jane@example.com", job.ID, "resumes/"+uuid.NewString())
	c.WorkStatus = domain.WorkQueued
	h.docs.mu.Lock()
	h.docs.files[c.ResumeRef] = resumeText
	h.docs.mu.Unlock()
	if err := h.mem.Candidates().Create(context.Background(), c); err != nil {
		t.Fatalf("create candidate: %v", err)
	}
	return c
}

// process выполняет один синхронный проход конвейера для кандидата.
func (h *harness) process(t *testing.T, id uuid.UUID) *domain.Candidate {
	t.Helper()
	h.pipe.processCandidate(context.Background(), id, "test-worker")
	c, err := h.mem.Candidates().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	return c
}

func (h *harness) auditFor(t *testing.T, id uuid.UUID, st domain.Stage) []domain.AuditEntry {
	t.Helper()
	history, err := h.mem.Audit().History(context.Background(), id)
	if err != nil {
		t.Fatalf("audit history: %v", err)
	}
	var out []domain.AuditEntry
	for _, e := range history {
		if e.Stage == st {
			out = append(out, e)
		}
	}
	return out
}

// --- Полный проход ---

func TestProcess_HappyPath(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "Go developer, github.com/janedoe")

	got := h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q), want COMPLETED", got.State, got.Error)
	}
	if got.WorkStatus != domain.WorkIdle {
		t.Fatalf("work status = %s", got.WorkStatus)
	}
	if got.IsLeased(time.Now()) {
		t.Fatal("lease must be released")
	}

	// Оценка создана и привязана к отчёту и уведомлению
	ev, err := h.mem.Evaluations().GetByCandidate(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	if ev.OverallScore != 8 || ev.Recommendation != domain.RecommendationInterview {
		t.Fatalf("evaluation = %d/%s", ev.OverallScore, ev.Recommendation)
	}
	if !strings.HasPrefix(ev.ReportRef, "reports/") {
		t.Fatalf("report ref = %q", ev.ReportRef)
	}
	if !ev.NotificationSent {
		t.Fatal("notification flag not set")
	}

	// Профиль был обнаружен и загружен
	if h.profiles.calls != 1 {
		t.Fatalf("profile fetches = %d", h.profiles.calls)
	}

	// Токен уведомления привязан к кандидату
	if h.messenger.sentCount() != 1 {
		t.Fatalf("notifications = %d", h.messenger.sentCount())
	}
	tok, err := h.mem.Tokens().Resolve(context.Background(), h.messenger.tokens[0])
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if tok.CandidateID != c.ID {
		t.Fatalf("token bound to %s, want %s", tok.CandidateID, c.ID)
	}

	// Каждая стадия оставила ровно одну успешную запись журнала
	for _, st := range domain.Stages {
		entries := h.auditFor(t, c.ID, st)
		if len(entries) != 1 || entries[0].Outcome != domain.OutcomeSuccess {
			t.Fatalf("stage %s audit = %+v", st, entries)
		}
	}
}

func TestProcess_NoProfileStillCompletes(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "Plain resume without any code links.")

	got := h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	if h.profiles.calls != 0 {
		t.Fatalf("profile fetches = %d, want 0", h.profiles.calls)
	}
}

// --- Деградация ---

func TestProcess_ProfileUnavailableDegrades(t *testing.T) {
	h := newHarness(t, Config{})
	h.profiles.fn = func(string) (map[string]any, error) {
		return nil, domain.Degraded("profile_unavailable", errors.New("github is down"))
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "see github.com/janedoe")

	got := h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q), want COMPLETED despite degradation", got.State, got.Error)
	}

	ev, err := h.mem.Evaluations().GetByCandidate(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	found := false
	for _, d := range ev.Degradations {
		if d == "profile_unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("degradations = %v, want profile_unavailable", ev.Degradations)
	}

	entries := h.auditFor(t, c.ID, domain.StageFetch)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeDegraded {
		t.Fatalf("fetch audit = %+v", entries)
	}
}

func TestProcess_ReplayAfterLeaseExpiryWithDegradedStage(t *testing.T) {
	h := newHarness(t, Config{})
	h.profiles.fn = func(string) (map[string]any, error) {
		return nil, domain.Degraded("profile_unavailable", errors.New("github is down"))
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "Go developer, github.com/janedoe")

	if got := h.process(t, c.ID); got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	aiCallsBefore := h.ai.callCount()

	// Смоделируем кандидата, у которого лиза истекла посреди evaluate:
	// janitor вернул его в очередь с сохранённой позицией
	fresh, err := h.mem.Candidates().Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fresh.State = domain.StateEvaluating
	fresh.Stage = domain.StageEvaluate
	fresh.WorkStatus = domain.WorkQueued
	if err := h.mem.Candidates().Update(context.Background(), fresh); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Degraded-стадия не оставила успеха в журнале и выполняется
	// заново; откат позиции назад не должен ронять кандидата
	got := h.process(t, c.ID)
	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q), replay must complete", got.State, got.Error)
	}

	entries := h.auditFor(t, c.ID, domain.StageFetch)
	if len(entries) != 2 || entries[1].Outcome != domain.OutcomeDegraded {
		t.Fatalf("fetch audit = %+v, want a second degraded attempt", entries)
	}

	// Остальные стадии переиспользованы: ни повторной оценки,
	// ни повторной доставки
	if h.ai.callCount() != aiCallsBefore {
		t.Fatalf("model calls = %d, want %d (reuse)", h.ai.callCount(), aiCallsBefore)
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("notifications = %d, want 1", h.messenger.sentCount())
	}
}

// --- Retry-бюджеты ---

func TestProcess_MalformedResponsesRetriedSeparately(t *testing.T) {
	h := newHarness(t, Config{})
	h.ai.fn = func(call int, _ string) (string, error) {
		if call <= 2 {
			return "the model rambles instead of emitting JSON", nil
		}
		return `{"overall_score": 7, "recommendation": "interview", "summary": "third time lucky"}`, nil
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	got := h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	if h.ai.callCount() != 3 {
		t.Fatalf("model calls = %d, want 3", h.ai.callCount())
	}

	entries := h.auditFor(t, c.ID, domain.StageEvaluate)
	if len(entries) != 3 {
		t.Fatalf("evaluate attempts = %d, want 3", len(entries))
	}
	if entries[0].Outcome != domain.OutcomeFailed || entries[1].Outcome != domain.OutcomeFailed {
		t.Fatalf("first attempts = %s, %s", entries[0].Outcome, entries[1].Outcome)
	}
	if entries[2].Outcome != domain.OutcomeSuccess || entries[2].Attempt != 3 {
		t.Fatalf("final attempt = %+v", entries[2])
	}
}

func TestProcess_MalformedBudgetExhausted(t *testing.T) {
	h := newHarness(t, Config{})
	h.ai.fn = func(int, string) (string, error) {
		return "never valid JSON", nil
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	got := h.process(t, c.ID)

	if got.State != domain.StateFailed {
		t.Fatalf("state = %s, want FAILED", got.State)
	}
	if !strings.Contains(got.Error, "ai_evaluation") {
		t.Fatalf("error = %q", got.Error)
	}
	if h.ai.callCount() != 3 {
		t.Fatalf("model calls = %d, want malformed budget of 3", h.ai.callCount())
	}
}

func TestProcess_TransientRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t, Config{})
	var calls int
	h.profiles.fn = func(login string) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, domain.TransientAfter(errors.New("429"), time.Millisecond)
		}
		return map[string]any{"login": login}, nil
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "see github.com/janedoe")

	got := h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	entries := h.auditFor(t, c.ID, domain.StageFetch)
	if len(entries) != 2 {
		t.Fatalf("fetch attempts = %d, want 2", len(entries))
	}
}

func TestProcess_PermanentErrorFailsImmediately(t *testing.T) {
	h := newHarness(t, Config{})
	h.ai.fn = func(int, string) (string, error) {
		return "", errors.New("invalid api key")
	}
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	got := h.process(t, c.ID)

	if got.State != domain.StateFailed {
		t.Fatalf("state = %s, want FAILED", got.State)
	}
	if h.ai.callCount() != 1 {
		t.Fatalf("model calls = %d, permanent error must not retry", h.ai.callCount())
	}
}

// --- Reprocess и идемпотентные гейты ---

func TestReprocess_ReusesCompletedStages(t *testing.T) {
	h := newHarness(t, Config{})
	h.reports.err = errors.New("disk full")
	job := h.addJob(t)
	c := h.addCandidate(t, job, "Go developer, github.com/janedoe")

	got := h.process(t, c.ID)
	if got.State != domain.StateFailed {
		t.Fatalf("state = %s, want FAILED on report stage", got.State)
	}
	aiCallsBefore := h.ai.callCount()

	// Хранилище починили, оператор перезапускает
	h.reports.mu.Lock()
	h.reports.err = nil
	h.reports.mu.Unlock()

	if err := h.pipe.Reprocess(context.Background(), c.ID, false); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	got = h.process(t, c.ID)

	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}

	// Завершённые стадии переиспользованы, модель не вызывалась повторно
	if h.ai.callCount() != aiCallsBefore {
		t.Fatalf("model calls = %d, want %d (reuse)", h.ai.callCount(), aiCallsBefore)
	}

	// Одна оценка, одно уведомление
	ev, err := h.mem.Evaluations().GetByCandidate(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	if !ev.NotificationSent {
		t.Fatal("notification flag not set")
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("notifications = %d, want 1", h.messenger.sentCount())
	}

	// Переиспользование не плодит записей журнала: на evaluate
	// осталась единственная успешная попытка
	entries := h.auditFor(t, c.ID, domain.StageEvaluate)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("evaluate audit = %+v", entries)
	}
}

func TestReprocess_OnlyFromFailed(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	got := h.process(t, c.ID)
	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s", got.State)
	}

	err := h.pipe.Reprocess(context.Background(), c.ID, false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestReprocess_NotificationGate(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	if got := h.process(t, c.ID); got.State != domain.StateCompleted {
		t.Fatalf("state = %s", got.State)
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("notifications = %d", h.messenger.sentCount())
	}

	// COMPLETED — reprocess запрещён даже с force
	if err := h.pipe.Reprocess(context.Background(), c.ID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// Смоделируем запись, оказавшуюся в FAILED уже после доставки
	// уведомления (ручная правка данных оператором)
	failRecord := func() {
		fresh, err := h.mem.Candidates().Get(context.Background(), c.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		fresh.State = domain.StateFailed
		fresh.Error = "manual failure"
		if err := h.mem.Candidates().Update(context.Background(), fresh); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	// Без force уведомление гейтится: проход завершается,
	// повторной доставки нет
	failRecord()
	if err := h.pipe.Reprocess(context.Background(), c.ID, false); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if got := h.process(t, c.ID); got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	if h.messenger.sentCount() != 1 {
		t.Fatalf("notifications = %d, want still 1", h.messenger.sentCount())
	}

	// С force стадия notification выполняется заново и доставляет
	// сообщение со свежим токеном
	failRecord()
	if err := h.pipe.Reprocess(context.Background(), c.ID, true); err != nil {
		t.Fatalf("Reprocess force: %v", err)
	}
	if got := h.process(t, c.ID); got.State != domain.StateCompleted {
		t.Fatalf("state = %s (error %q)", got.State, got.Error)
	}
	if h.messenger.sentCount() != 2 {
		t.Fatalf("notifications = %d, want 2 after force", h.messenger.sentCount())
	}
	if h.messenger.tokens[0] == h.messenger.tokens[1] {
		t.Fatal("forced resend must mint a fresh token")
	}
}

// --- Abort ---

func TestAbort_IdleCandidateFailsImmediately(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")
	c.WorkStatus = domain.WorkIdle
	if err := h.mem.Candidates().Update(context.Background(), c); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := h.pipe.Abort(context.Background(), c.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	got, err := h.mem.Candidates().Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.StateFailed {
		t.Fatalf("state = %s, want FAILED", got.State)
	}
	if got.Error != ErrAborted.Error() {
		t.Fatalf("error = %q", got.Error)
	}
}

func TestAbort_TerminalCandidateRejected(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	if got := h.process(t, c.ID); got.State != domain.StateCompleted {
		t.Fatalf("state = %s", got.State)
	}

	if err := h.pipe.Abort(context.Background(), c.ID); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("err = %v, want ErrTerminalState", err)
	}
}

func TestProcess_CancelFlagCheckedAtStageBoundary(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	if err := h.mem.Candidates().RequestCancel(context.Background(), c.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	got := h.process(t, c.ID)
	if got.State != domain.StateFailed {
		t.Fatalf("state = %s, want FAILED", got.State)
	}
	if got.Error != ErrAborted.Error() {
		t.Fatalf("error = %q", got.Error)
	}
	if h.ai.callCount() != 0 {
		t.Fatal("no stage must run after cancel")
	}
}

// --- Лизы ---

func TestProcess_SkipsLeasedCandidate(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	if _, err := h.mem.Candidates().AcquireLease(context.Background(), c.ID, "other-worker", time.Minute); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	got := h.process(t, c.ID)
	if got.State != domain.StateSubmitted {
		t.Fatalf("state = %s, leased candidate must be untouched", got.State)
	}
	if h.ai.callCount() != 0 {
		t.Fatal("no stage must run for a leased candidate")
	}
}

func TestStartProcessing_RejectsLeased(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)
	c := h.addCandidate(t, job, "resume text")

	if _, err := h.mem.Candidates().AcquireLease(context.Background(), c.ID, "other-worker", time.Minute); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	if err := h.pipe.StartProcessing(context.Background(), c.ID); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("err = %v, want ErrAlreadyQueued", err)
	}
}

// --- Пул воркеров ---

func TestPipeline_BackpressureAllCandidatesFinish(t *testing.T) {
	h := newHarness(t, Config{
		Workers:      3,
		QueueSize:    4,
		PollInterval: 20 * time.Millisecond,
		BatchSize:    50,
	})
	job := h.addJob(t)

	const total = 12
	ids := make([]uuid.UUID, 0, total)
	for i := 0; i < total; i++ {
		c := h.addCandidate(t, job, fmt.Sprintf("resume %d, github.com/user%d", i, i))
		ids = append(ids, c.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	deadline := time.After(10 * time.Second)
	for {
		done := 0
		for _, id := range ids {
			c, err := h.mem.Candidates().Get(context.Background(), id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if c.State.IsTerminal() {
				done++
			}
		}
		if done == total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d/%d candidates finished", done, total)
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Ровно одна оценка и одна успешная evaluate-попытка на кандидата
	for _, id := range ids {
		c, _ := h.mem.Candidates().Get(context.Background(), id)
		if c.State != domain.StateCompleted {
			t.Fatalf("candidate %s state = %s (error %q)", id, c.State, c.Error)
		}
		if _, err := h.mem.Evaluations().GetByCandidate(context.Background(), id); err != nil {
			t.Fatalf("evaluation for %s: %v", id, err)
		}
		success := 0
		for _, e := range h.auditFor(t, id, domain.StageEvaluate) {
			if e.Outcome == domain.OutcomeSuccess {
				success++
			}
		}
		if success != 1 {
			t.Fatalf("candidate %s evaluate successes = %d", id, success)
		}
	}
}

func TestPipeline_ConcurrencyBoundedByWorkerPool(t *testing.T) {
	h := newHarness(t, Config{
		Workers:      5,
		QueueSize:    16,
		PollInterval: 20 * time.Millisecond,
		BatchSize:    50,
	})

	// Модель блокируется до release: пока пул занят, лишние кандидаты
	// обязаны ждать в очереди, а не выполняться
	release := make(chan struct{})
	var mu sync.Mutex
	inflight, peak := 0, 0
	h.ai.fn = func(int, string) (string, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inflight--
		mu.Unlock()
		return `{"overall_score": 8, "recommendation": "interview", "summary": "ok"}`, nil
	}

	job := h.addJob(t)
	const total = 12
	ids := make([]uuid.UUID, 0, total)
	for i := 0; i < total; i++ {
		c := h.addCandidate(t, job, fmt.Sprintf("resume %d", i))
		ids = append(ids, c.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	// Все пять воркеров должны дойти до модели и встать на release
	deadline := time.After(10 * time.Second)
	for {
		mu.Lock()
		busy := inflight
		mu.Unlock()
		if busy == 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("inflight = %d, want the full pool of 5", busy)
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Шестой оценки не появляется: остальные семь ждут в очереди
	time.Sleep(100 * time.Millisecond)
	if calls := h.ai.callCount(); calls != 5 {
		t.Fatalf("model calls while pool is saturated = %d, want 5", calls)
	}
	done := 0
	for _, id := range ids {
		c, err := h.mem.Candidates().Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if c.State.IsTerminal() {
			done++
		}
	}
	if done != 0 {
		t.Fatalf("%d candidates finished while the pool is blocked", done)
	}

	close(release)

	deadline = time.After(10 * time.Second)
	for {
		done = 0
		for _, id := range ids {
			c, _ := h.mem.Candidates().Get(context.Background(), id)
			if c != nil && c.State == domain.StateCompleted {
				done++
			}
		}
		if done == total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d/%d candidates finished after release", done, total)
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 5 {
		t.Fatalf("peak concurrent evaluations = %d, pool of 5 must bound it", peak)
	}
}

func TestPipeline_CandidateIsolation(t *testing.T) {
	h := newHarness(t, Config{
		Workers:      5,
		PollInterval: 20 * time.Millisecond,
		BatchSize:    50,
	})
	// Модель эхом возвращает маркер кандидата из собственного промпта:
	// перепутанные контексты дали бы чужой маркер в оценке
	h.ai.fn = func(_ int, prompt string) (string, error) {
		marker := "unknown"
		if i := strings.Index(prompt, "MARKER-"); i >= 0 {
			marker = prompt[i : i+len("MARKER-")+2]
		}
		return fmt.Sprintf(`{"overall_score": 8, "recommendation": "interview", "summary": %q}`, marker), nil
	}
	job := h.addJob(t)

	const total = 20
	markers := make(map[uuid.UUID]string, total)
	for i := 0; i < total; i++ {
		marker := fmt.Sprintf("MARKER-%02d", i)
		c := h.addCandidate(t, job, "resume "+marker)
		markers[c.ID] = marker
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	deadline := time.After(10 * time.Second)
	for {
		done := 0
		for id := range markers {
			c, err := h.mem.Candidates().Get(context.Background(), id)
			if err == nil && c.State.IsTerminal() {
				done++
			}
		}
		if done == total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d/%d candidates finished", done, total)
		case <-time.After(20 * time.Millisecond):
		}
	}

	for id, marker := range markers {
		ev, err := h.mem.Evaluations().GetByCandidate(context.Background(), id)
		if err != nil {
			t.Fatalf("evaluation for %s: %v", id, err)
		}
		if ev.Analysis.Summary != marker {
			t.Fatalf("candidate %s got summary %q, want own marker %q (context leak)", id, ev.Analysis.Summary, marker)
		}
	}
}

// --- Атрибуция feedback ---

func TestProcess_SameSecondCandidatesAttributedByTokenOnly(t *testing.T) {
	h := newHarness(t, Config{})
	job := h.addJob(t)

	a := h.addCandidate(t, job, "resume of candidate A")
	b := h.addCandidate(t, job, "resume of candidate B")

	// Одинаковое время подачи: различить кандидатов может только токен
	b.SubmittedAt = a.SubmittedAt
	if err := h.mem.Candidates().Update(context.Background(), b); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := h.process(t, a.ID); got.State != domain.StateCompleted {
		t.Fatalf("candidate A state = %s (error %q)", got.State, got.Error)
	}
	if got := h.process(t, b.ID); got.State != domain.StateCompleted {
		t.Fatalf("candidate B state = %s (error %q)", got.State, got.Error)
	}

	if h.messenger.sentCount() != 2 {
		t.Fatalf("notifications = %d, want 2", h.messenger.sentCount())
	}
	tokenA, tokenB := h.messenger.tokens[0], h.messenger.tokens[1]
	if tokenA == tokenB {
		t.Fatal("candidates must get distinct correlation tokens")
	}
	for token, want := range map[string]uuid.UUID{tokenA: a.ID, tokenB: b.ID} {
		tok, err := h.mem.Tokens().Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("resolve token: %v", err)
		}
		if tok.CandidateID != want {
			t.Fatalf("token bound to %s, want %s", tok.CandidateID, want)
		}
	}

	// Inbound feedback по токену B приписывается только кандидату B
	rec := feedback.New(feedback.Config{
		Tokens:      h.mem.Tokens(),
		Feedback:    h.mem.Feedback(),
		Candidates:  h.mem.Candidates(),
		Evaluations: h.mem.Evaluations(),
	})
	fb, created, err := rec.Submit(context.Background(), feedback.Submission{
		Token:         tokenB,
		MessageID:     "provider-msg-1",
		StakeholderID: "stakeholder-1",
		Decision:      domain.DecisionDecline,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !created {
		t.Fatal("fresh message must report created")
	}
	if fb.CandidateID != b.ID {
		t.Fatalf("feedback attributed to %s, want %s", fb.CandidateID, b.ID)
	}

	historyA, err := rec.History(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(historyA) != 0 {
		t.Fatalf("candidate A history len = %d, feedback leaked across candidates", len(historyA))
	}
	historyB, err := rec.History(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(historyB) != 1 {
		t.Fatalf("candidate B history len = %d, want 1", len(historyB))
	}
}

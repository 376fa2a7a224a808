package feedback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

type env struct {
	mem         *store.Memory
	rec         *Reconciler
	candidateID uuid.UUID
	token       string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mem := store.NewMemory()
	rec := New(Config{
		Tokens:      mem.Tokens(),
		Feedback:    mem.Feedback(),
		Candidates:  mem.Candidates(),
		Evaluations: mem.Evaluations(),
	})

	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	if err := mem.Candidates().Create(context.Background(), c); err != nil {
		t.Fatalf("create candidate: %v", err)
	}

	ev := &domain.Evaluation{
		ID:             uuid.New(),
		CandidateID:    c.ID,
		OverallScore:   8,
		Recommendation: domain.RecommendationInterview,
		CreatedAt:      time.Now(),
	}
	if err := mem.Evaluations().Create(context.Background(), ev); err != nil {
		t.Fatalf("create evaluation: %v", err)
	}

	token := uuid.NewString()
	err := mem.Tokens().Bind(context.Background(), &domain.CorrelationToken{
		Token:        token,
		CandidateID:  c.ID,
		EvaluationID: ev.ID,
		IssuedAt:     time.Now(),
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("bind token: %v", err)
	}

	return &env{mem: mem, rec: rec, candidateID: c.ID, token: token}
}

func (e *env) submission(decision domain.Decision) Submission {
	return Submission{
		Token:         e.token,
		MessageID:     uuid.NewString(),
		StakeholderID: "stakeholder-1",
		Decision:      decision,
	}
}

// --- Атрибуция ---

func TestSubmit_AttributesByToken(t *testing.T) {
	e := newEnv(t)

	fb, created, err := e.rec.Submit(context.Background(), e.submission(domain.DecisionInterview))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !created {
		t.Fatal("fresh message must report created")
	}
	if fb.CandidateID != e.candidateID {
		t.Fatalf("attributed to %s, want %s", fb.CandidateID, e.candidateID)
	}
	if fb.Conflicting {
		t.Fatal("decision matches recommendation, must not be conflicting")
	}
	if fb.PostCompletion {
		t.Fatal("candidate is not terminal, post_completion must be false")
	}

	history, err := e.rec.History(context.Background(), e.candidateID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d", len(history))
	}
}

func TestSubmit_UnknownToken(t *testing.T) {
	e := newEnv(t)

	sub := e.submission(domain.DecisionInterview)
	sub.Token = uuid.NewString()

	if _, _, err := e.rec.Submit(context.Background(), sub); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}

	// Неатрибутированное сообщение не попадает в историю
	history, _ := e.rec.History(context.Background(), e.candidateID)
	if len(history) != 0 {
		t.Fatalf("history len = %d, want 0", len(history))
	}
}

func TestSubmit_ExpiredToken(t *testing.T) {
	e := newEnv(t)

	expired := uuid.NewString()
	err := e.mem.Tokens().Bind(context.Background(), &domain.CorrelationToken{
		Token:       expired,
		CandidateID: e.candidateID,
		IssuedAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	sub := e.submission(domain.DecisionInterview)
	sub.Token = expired

	if _, _, err := e.rec.Submit(context.Background(), sub); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestSubmit_InvalidDecision(t *testing.T) {
	e := newEnv(t)

	sub := e.submission("maybe")
	if _, _, err := e.rec.Submit(context.Background(), sub); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("err = %v, want ErrInvalidDecision", err)
	}
}

// --- Дедупликация ---

func TestSubmit_DuplicateMessageIsNoop(t *testing.T) {
	e := newEnv(t)

	sub := e.submission(domain.DecisionInterview)
	first, created, err := e.rec.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !created {
		t.Fatal("first delivery must report created")
	}

	// Повторная доставка того же сообщения, даже с другим решением
	sub.Decision = domain.DecisionDecline
	second, created, err := e.rec.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit duplicate: %v", err)
	}
	if created {
		t.Fatal("duplicate delivery must not report created")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate returned new record %s, want original %s", second.ID, first.ID)
	}
	if second.Decision != domain.DecisionInterview {
		t.Fatalf("duplicate mutated decision to %s", second.Decision)
	}

	history, _ := e.rec.History(context.Background(), e.candidateID)
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
}

// --- Маркировка ---

func TestSubmit_ConflictingDecision(t *testing.T) {
	e := newEnv(t)

	// Рекомендация оценки — interview; decline противоречит
	fb, _, err := e.rec.Submit(context.Background(), e.submission(domain.DecisionDecline))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !fb.Conflicting {
		t.Fatal("decline against interview recommendation must be conflicting")
	}

	// Комментарий не противоречит ничему
	fb, _, err = e.rec.Submit(context.Background(), e.submission(domain.DecisionComment))
	if err != nil {
		t.Fatalf("Submit comment: %v", err)
	}
	if fb.Conflicting {
		t.Fatal("comment must not be marked conflicting")
	}
}

func TestSubmit_PostCompletion(t *testing.T) {
	e := newEnv(t)

	c, err := e.mem.Candidates().Get(context.Background(), e.candidateID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	c.State = domain.StateCompleted
	if err := e.mem.Candidates().Update(context.Background(), c); err != nil {
		t.Fatalf("update: %v", err)
	}

	fb, _, err := e.rec.Submit(context.Background(), e.submission(domain.DecisionInterview))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !fb.PostCompletion {
		t.Fatal("feedback after terminal state must be marked post_completion")
	}

	// Поздний feedback не переоткрывает кандидата
	got, _ := e.mem.Candidates().Get(context.Background(), e.candidateID)
	if got.State != domain.StateCompleted {
		t.Fatalf("state = %s, feedback must not reopen the candidate", got.State)
	}
}

// --- Агрегация ---

// submitAt пишет запись напрямую в хранилище с заданным временем:
// политики чувствительны к порядку получения.
func (e *env) submitAt(t *testing.T, decision domain.Decision, role string, at time.Time) {
	t.Helper()
	err := e.mem.Feedback().Append(context.Background(), &domain.StakeholderFeedback{
		ID:              uuid.New(),
		CandidateID:     e.candidateID,
		StakeholderID:   "stakeholder-" + role,
		StakeholderRole: role,
		Decision:        decision,
		MessageID:       uuid.NewString(),
		ReceivedAt:      at,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestAggregate_MostRecentIsDefault(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionInterview, "recruiter", base)
	e.submitAt(t, domain.DecisionDecline, "interviewer", base.Add(time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, "")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Policy != PolicyMostRecent {
		t.Fatalf("policy = %s", res.Policy)
	}
	if res.Decision != domain.DecisionDecline {
		t.Fatalf("decision = %s, want the most recent decline", res.Decision)
	}
	if !res.Conflicting {
		t.Fatal("mixed decisions must be flagged conflicting")
	}
	if res.Total != 2 {
		t.Fatalf("total = %d", res.Total)
	}
}

func TestAggregate_RolePrecedence(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionDecline, "hiring_manager", base)
	e.submitAt(t, domain.DecisionInterview, "interviewer", base.Add(time.Minute))
	e.submitAt(t, domain.DecisionInterview, "recruiter", base.Add(2*time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyRolePrecedence)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Decision != domain.DecisionDecline {
		t.Fatalf("decision = %s, hiring_manager must outrank", res.Decision)
	}
	if res.Decisive.StakeholderRole != "hiring_manager" {
		t.Fatalf("decisive role = %s", res.Decisive.StakeholderRole)
	}
}

func TestAggregate_RolePrecedence_LaterSameRoleWins(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionDecline, "hiring_manager", base)
	e.submitAt(t, domain.DecisionInterview, "hiring_manager", base.Add(time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyRolePrecedence)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Decision != domain.DecisionInterview {
		t.Fatalf("decision = %s, later decision of the same role must win", res.Decision)
	}
}

func TestAggregate_Majority(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionInterview, "recruiter", base)
	e.submitAt(t, domain.DecisionInterview, "interviewer", base.Add(time.Minute))
	e.submitAt(t, domain.DecisionDecline, "hiring_manager", base.Add(2*time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyMajority)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Decision != domain.DecisionInterview {
		t.Fatalf("decision = %s, want the majority interview", res.Decision)
	}
}

func TestAggregate_MajorityTieTakesLatest(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionInterview, "recruiter", base)
	e.submitAt(t, domain.DecisionDecline, "interviewer", base.Add(time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyMajority)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Decision != domain.DecisionDecline {
		t.Fatalf("decision = %s, tie must take the latest", res.Decision)
	}
}

func TestAggregate_CommentsExcluded(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	e.submitAt(t, domain.DecisionInterview, "recruiter", base)
	e.submitAt(t, domain.DecisionComment, "hiring_manager", base.Add(time.Minute))

	res, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyMostRecent)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Decision != domain.DecisionInterview {
		t.Fatalf("decision = %s, comment must not participate", res.Decision)
	}
	if res.Total != 1 {
		t.Fatalf("total = %d, comments must be excluded", res.Total)
	}
	if res.Conflicting {
		t.Fatal("single decision cannot be conflicting")
	}
}

func TestAggregate_NoDecisions(t *testing.T) {
	e := newEnv(t)
	e.submitAt(t, domain.DecisionComment, "recruiter", time.Now())

	if _, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyMostRecent); !errors.Is(err, ErrNoDecisions) {
		t.Fatalf("err = %v, want ErrNoDecisions", err)
	}
}

func TestAggregate_UnknownPolicy(t *testing.T) {
	e := newEnv(t)
	e.submitAt(t, domain.DecisionInterview, "recruiter", time.Now())

	if _, err := e.rec.Aggregate(context.Background(), e.candidateID, Policy("coin_flip")); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("err = %v, want ErrUnknownPolicy", err)
	}
}

func TestAggregate_HistoryIsImmutable(t *testing.T) {
	e := newEnv(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		decision := domain.DecisionInterview
		if i%2 == 1 {
			decision = domain.DecisionDecline
		}
		e.submitAt(t, decision, fmt.Sprintf("role-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	if _, err := e.rec.Aggregate(context.Background(), e.candidateID, PolicyMajority); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	history, _ := e.rec.History(context.Background(), e.candidateID)
	if len(history) != 3 {
		t.Fatalf("history len = %d, aggregation must not mutate history", len(history))
	}
}

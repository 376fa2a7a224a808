package stage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

type fakeMessenger struct {
	sent   []string
	tokens []string
	err    error
}

func (f *fakeMessenger) Send(_ context.Context, text, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, text)
	f.tokens = append(f.tokens, token)
	return "msg-" + token[:8], nil
}

func notifyContext(t *testing.T) *ExecContext {
	t.Helper()
	ec := execContextWithText("resume")
	ec.Evaluation = evalFixture(ec.Candidate.ID)
	ec.SetOutput(domain.StageReport, map[string]any{"report_ref": "reports/r.md"})
	return ec
}

// --- Execute ---

func TestNotifyExecute_Sends(t *testing.T) {
	m := &fakeMessenger{}
	e := &NotifyExecutor{Messenger: m}
	ec := notifyContext(t)

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output["sent"] != true {
		t.Fatalf("sent = %v", res.Output["sent"])
	}
	token, _ := res.Output["token"].(string)
	if _, err := uuid.Parse(token); err != nil {
		t.Fatalf("token %q is not a uuid: %v", token, err)
	}
	if res.Output["delivery_id"] != "msg-"+token[:8] {
		t.Fatalf("delivery_id = %v", res.Output["delivery_id"])
	}

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages", len(m.sent))
	}
	text := m.sent[0]
	if !containsAll(text, "Jane Doe", "Score: 8/10", "✅ Interview", token) {
		t.Fatalf("notification text:\n%s", text)
	}
}

func TestNotifyExecute_DeclineVerdict(t *testing.T) {
	m := &fakeMessenger{}
	e := &NotifyExecutor{Messenger: m}
	ec := notifyContext(t)
	ec.Evaluation.OverallScore = 3
	ec.Evaluation.Recommendation = domain.RecommendationDecline

	if _, err := e.Execute(context.Background(), ec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(m.sent[0], "❌ Decline") {
		t.Fatalf("verdict missing:\n%s", m.sent[0])
	}
}

func TestNotifyExecute_SkipsWhenAlreadySent(t *testing.T) {
	m := &fakeMessenger{}
	e := &NotifyExecutor{Messenger: m}
	ec := notifyContext(t)
	ec.Evaluation.NotificationSent = true

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output["sent"] != false {
		t.Fatalf("sent = %v, want false", res.Output["sent"])
	}
	if res.Output["token"] != "" {
		t.Fatalf("token = %v, want empty", res.Output["token"])
	}
	if len(m.sent) != 0 {
		t.Fatal("messenger must not be called")
	}
}

func TestNotifyExecute_ForceResends(t *testing.T) {
	m := &fakeMessenger{}
	e := &NotifyExecutor{Messenger: m}
	ec := notifyContext(t)
	ec.Evaluation.NotificationSent = true
	ec.Force = true

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output["sent"] != true {
		t.Fatal("force must override the delivery gate")
	}
	if len(m.tokens) != 1 || m.tokens[0] == "" {
		t.Fatal("forced resend must mint a fresh token")
	}
}

func TestNotifyExecute_MissingEvaluation(t *testing.T) {
	e := &NotifyExecutor{Messenger: &fakeMessenger{}}
	ec := execContextWithText("resume")

	if _, err := e.Execute(context.Background(), ec); !errors.Is(err, ErrNoEvaluation) {
		t.Fatalf("err = %v, want ErrNoEvaluation", err)
	}
}

func TestNotifyExecute_SendFailurePassedThrough(t *testing.T) {
	wantErr := domain.TransientAfter(errors.New("telegram 429"), 5*time.Second)
	e := &NotifyExecutor{Messenger: &fakeMessenger{err: wantErr}}
	ec := notifyContext(t)

	_, err := e.Execute(context.Background(), ec)
	if domain.Classify(err) != domain.ClassTransient {
		t.Fatalf("class = %v, want transient", domain.Classify(err))
	}
}

// --- renderNotification ---

func TestRenderNotification_Degradations(t *testing.T) {
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	job := &domain.JobDescription{Title: "Go Developer"}
	ev := evalFixture(c.ID)
	ev.Degradations = []string{"profile_unavailable"}

	text := renderNotification(c, job, ev, "tok-1")
	if !strings.Contains(text, "evaluation degraded (profile_unavailable)") {
		t.Fatalf("degradation note missing:\n%s", text)
	}
	if !strings.Contains(text, "reference tok-1") {
		t.Fatalf("token missing:\n%s", text)
	}
}

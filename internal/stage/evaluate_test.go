package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i], nil
}

func (f *fakeCompleter) Model() string { return "test-model" }

const validModelResponse = `{
	"overall_score": 8,
	"recommendation": "interview",
	"strengths": ["go"],
	"summary": "solid candidate"
}`

// --- Execute ---

func TestEvaluateExecute_Success(t *testing.T) {
	ai := &fakeCompleter{responses: []string{validModelResponse}}
	e := &EvaluateExecutor{AI: ai}
	ec := execContextWithText("Go developer, 5 years")

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if res.Output["overall_score"] != 8 {
		t.Fatalf("overall_score = %v", res.Output["overall_score"])
	}
	if res.Output["recommendation"] != "interview" {
		t.Fatalf("recommendation = %v", res.Output["recommendation"])
	}
	if res.Output["model"] != "test-model" {
		t.Fatalf("model = %v", res.Output["model"])
	}
	if _, ok := res.Output["analysis"].(map[string]any); !ok {
		t.Fatalf("analysis is %T, want map", res.Output["analysis"])
	}
}

func TestEvaluateExecute_PromptIncludesProfile(t *testing.T) {
	ai := &fakeCompleter{responses: []string{validModelResponse}}
	e := &EvaluateExecutor{AI: ai}
	ec := execContextWithText("resume text")
	ec.SetOutput(domain.StageFetch, map[string]any{
		"profile": map[string]any{"public_repos": 42},
	})

	if _, err := e.Execute(context.Background(), ec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ai.prompts) != 1 {
		t.Fatalf("calls = %d", len(ai.prompts))
	}
	if !containsAll(ai.prompts[0], "resume text", "public_repos") {
		t.Fatalf("prompt missing inputs:\n%s", ai.prompts[0])
	}
}

func TestEvaluateExecute_MissingText(t *testing.T) {
	e := &EvaluateExecutor{AI: &fakeCompleter{responses: []string{validModelResponse}}}
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	ec := NewExecContext(c, &domain.JobDescription{Title: "Go Developer"})

	if _, err := e.Execute(context.Background(), ec); !errors.Is(err, ErrNoResumeText) {
		t.Fatalf("err = %v, want ErrNoResumeText", err)
	}
}

func TestEvaluateExecute_MalformedResponse(t *testing.T) {
	ai := &fakeCompleter{responses: []string{"Sure! The candidate looks great."}}
	e := &EvaluateExecutor{AI: ai}

	_, err := e.Execute(context.Background(), execContextWithText("text"))
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.ClassMalformed {
		t.Fatalf("class = %v, want malformed", domain.Classify(err))
	}
}

func TestEvaluateExecute_CompleterError(t *testing.T) {
	wantErr := domain.Transient(errors.New("rate limited"))
	e := &EvaluateExecutor{AI: &fakeCompleter{err: wantErr}}

	_, err := e.Execute(context.Background(), execContextWithText("text"))
	if domain.Classify(err) != domain.ClassTransient {
		t.Fatalf("class = %v, want transient", domain.Classify(err))
	}
}

// --- Fingerprint ---

func TestEvaluateFingerprint_ProfileSensitive(t *testing.T) {
	e := &EvaluateExecutor{}
	ec := execContextWithText("same text")

	without := e.Fingerprint(ec)
	ec.SetOutput(domain.StageFetch, map[string]any{
		"profile": map[string]any{"public_repos": 1},
	})
	with := e.Fingerprint(ec)

	if without == with {
		t.Fatal("fingerprint must change when profile data appears")
	}
}

// --- EvaluationFromOutput ---

func TestEvaluationFromOutput(t *testing.T) {
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	output := map[string]any{
		"overall_score":  7,
		"recommendation": "interview",
		"analysis":       map[string]any{"summary": "good fit"},
		"model":          "test-model",
	}

	ev, err := EvaluationFromOutput(c, output)
	if err != nil {
		t.Fatalf("EvaluationFromOutput: %v", err)
	}
	if ev.CandidateID != c.ID {
		t.Fatalf("candidate id = %s", ev.CandidateID)
	}
	if ev.OverallScore != 7 || ev.Recommendation != domain.RecommendationInterview {
		t.Fatalf("score=%d rec=%q", ev.OverallScore, ev.Recommendation)
	}
	if ev.Analysis.Summary != "good fit" {
		t.Fatalf("summary = %q", ev.Analysis.Summary)
	}
	if ev.Model != "test-model" {
		t.Fatalf("model = %q", ev.Model)
	}
}

func TestEvaluationFromOutput_Invalid(t *testing.T) {
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	cases := []map[string]any{
		{"overall_score": 0, "recommendation": "interview"},
		{"overall_score": 11, "recommendation": "decline"},
		{"overall_score": 5, "recommendation": "maybe"},
	}
	for _, output := range cases {
		if _, err := EvaluationFromOutput(c, output); err == nil {
			t.Errorf("output %v: expected error", output)
		}
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

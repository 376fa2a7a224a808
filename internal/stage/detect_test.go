package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

func execContextWithText(text string) *ExecContext {
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	ec := NewExecContext(c, &domain.JobDescription{Title: "Go Developer"})
	ec.SetOutput(domain.StageParse, map[string]any{"text": text})
	return ec
}

// --- detectLogin ---

func TestDetectLogin_URL(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Projects: https://github.com/janedoe/awesome", "janedoe"},
		{"github.com/jane-doe", "jane-doe"},
		{"see GITHUB.COM/JaneDoe for code", "JaneDoe"},
		{"profile: https://github.com/janedoe.", "janedoe"},
	}

	for _, c := range cases {
		if got := detectLogin(c.text); got != c.want {
			t.Errorf("detectLogin(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestDetectLogin_Mention(t *testing.T) {
	if got := detectLogin("GitHub: @janedoe"); got != "janedoe" {
		t.Errorf("mention = %q, want janedoe", got)
	}
	// Упоминание без слова github рядом — не профиль
	if got := detectLogin("reach me at @janedoe on most platforms"); got != "" {
		t.Errorf("bare mention = %q, want empty", got)
	}
}

func TestDetectLogin_ReservedPaths(t *testing.T) {
	cases := []string{
		"see github.com/features for details",
		"https://github.com/pricing",
		"github.com/orgs",
	}

	for _, text := range cases {
		if got := detectLogin(text); got != "" {
			t.Errorf("detectLogin(%q) = %q, reserved path must be ignored", text, got)
		}
	}
}

func TestDetectLogin_TrailingHyphen(t *testing.T) {
	// Регулярное выражение может захватить дефис на границе
	if got := detectLogin("github.com/janedoe-/repo"); got != "janedoe" {
		t.Errorf("got %q, want janedoe", got)
	}
}

func TestDetectLogin_NoMatch(t *testing.T) {
	if got := detectLogin("Ten years of COBOL experience."); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// --- Execute ---

func TestDetectExecute_Found(t *testing.T) {
	e := &DetectExecutor{}
	ec := execContextWithText("Open source: github.com/janedoe")

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess {
		t.Errorf("outcome = %s, want SUCCESS", res.Outcome)
	}
	if res.Output["found"] != true || res.Output["login"] != "janedoe" {
		t.Errorf("output = %+v", res.Output)
	}
}

func TestDetectExecute_NotFoundIsSuccess(t *testing.T) {
	e := &DetectExecutor{}
	ec := execContextWithText("No links here.")

	res, err := e.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess {
		t.Errorf("no profile must still be SUCCESS, got %s", res.Outcome)
	}
	if res.Output["found"] != false {
		t.Errorf("output = %+v", res.Output)
	}
}

func TestDetectExecute_MissingText(t *testing.T) {
	e := &DetectExecutor{}
	c := domain.NewCandidate("Jane Doe", "jane@example.com", uuid.New(), "resumes/jane.pdf")
	ec := NewExecContext(c, &domain.JobDescription{})

	if _, err := e.Execute(context.Background(), ec); !errors.Is(err, ErrNoResumeText) {
		t.Errorf("err = %v, want ErrNoResumeText", err)
	}
}

// --- Fingerprint ---

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(domain.StageEvaluate, map[string]any{"text": "resume", "job_id": "j-1"})
	b := Fingerprint(domain.StageEvaluate, map[string]any{"job_id": "j-1", "text": "resume"})
	if a != b {
		t.Error("fingerprint must not depend on map iteration order")
	}
}

func TestFingerprint_InputSensitive(t *testing.T) {
	a := Fingerprint(domain.StageEvaluate, map[string]any{"text": "resume v1"})
	b := Fingerprint(domain.StageEvaluate, map[string]any{"text": "resume v2"})
	if a == b {
		t.Error("different inputs must produce different fingerprints")
	}

	c := Fingerprint(domain.StageParse, map[string]any{"text": "resume v1"})
	if a == c {
		t.Error("same input under a different stage must produce a different fingerprint")
	}
}

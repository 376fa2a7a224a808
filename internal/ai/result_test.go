package ai

import (
	"strings"
	"testing"

	"github.com/shaiso/Kadra/internal/domain"
)

// --- ParseResult: валидные ответы ---

func TestParseResult_Valid(t *testing.T) {
	res, err := ParseResult(`{
		"overall_score": 8,
		"recommendation": "interview",
		"strengths": ["go", "distributed systems"],
		"weaknesses": ["no frontend"],
		"skill_matches": {"go": {"score": 9, "evidence": "5 years", "matched": true}},
		"summary": "strong backend engineer",
		"recommendation_reasoning": "matches all required skills"
	}`)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if res.OverallScore != 8 {
		t.Fatalf("score = %d, want 8", res.OverallScore)
	}
	if res.Recommendation != domain.RecommendationInterview {
		t.Fatalf("recommendation = %q, want interview", res.Recommendation)
	}
	if len(res.Analysis.Strengths) != 2 {
		t.Fatalf("strengths = %v", res.Analysis.Strengths)
	}
	sm, ok := res.Analysis.Skills["go"]
	if !ok || sm.Score != 9 || !sm.Matched {
		t.Fatalf("skill match go = %+v", sm)
	}
	if res.Analysis.Summary != "strong backend engineer" {
		t.Fatalf("summary = %q", res.Analysis.Summary)
	}
}

func TestParseResult_StripsFences(t *testing.T) {
	fenced := "```json\n{\"overall_score\": 3, \"recommendation\": \"decline\"}\n```"
	res, err := ParseResult(fenced)
	if err != nil {
		t.Fatalf("ParseResult fenced: %v", err)
	}
	if res.OverallScore != 3 || res.Recommendation != domain.RecommendationDecline {
		t.Fatalf("got score=%d rec=%q", res.OverallScore, res.Recommendation)
	}

	// Ограждение без языковой метки тоже допустимо
	res, err = ParseResult("```\n{\"overall_score\": 7, \"recommendation\": \"interview\"}\n```")
	if err != nil {
		t.Fatalf("ParseResult bare fence: %v", err)
	}
	if res.OverallScore != 7 {
		t.Fatalf("score = %d, want 7", res.OverallScore)
	}
}

func TestParseResult_RecommendationFollowsScore(t *testing.T) {
	// Модель противоречит сама себе: балл 8, рекомендация decline.
	// Балл — источник истины.
	res, err := ParseResult(`{"overall_score": 8, "recommendation": "decline"}`)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if res.Recommendation != domain.RecommendationInterview {
		t.Fatalf("recommendation = %q, want interview for score 8", res.Recommendation)
	}

	res, err = ParseResult(`{"overall_score": 5, "recommendation": "interview"}`)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if res.Recommendation != domain.RecommendationDecline {
		t.Fatalf("recommendation = %q, want decline for score 5", res.Recommendation)
	}
}

func TestParseResult_RecommendationCaseInsensitive(t *testing.T) {
	res, err := ParseResult(`{"overall_score": 9, "recommendation": " Interview "}`)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if res.Recommendation != domain.RecommendationInterview {
		t.Fatalf("recommendation = %q", res.Recommendation)
	}
}

// --- ParseResult: нарушения схемы ---

func TestParseResult_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "I'd rate this candidate an 8 out of 10."},
		{"missing score", `{"recommendation": "interview"}`},
		{"score zero", `{"overall_score": 0, "recommendation": "decline"}`},
		{"score eleven", `{"overall_score": 11, "recommendation": "interview"}`},
		{"unknown recommendation", `{"overall_score": 7, "recommendation": "maybe"}`},
		{"empty recommendation", `{"overall_score": 7, "recommendation": ""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResult(tc.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if domain.Classify(err) != domain.ClassMalformed {
				t.Fatalf("class = %v, want malformed", domain.Classify(err))
			}
		})
	}
}

// --- BuildPrompt ---

func TestBuildPrompt_Deterministic(t *testing.T) {
	job := &domain.JobDescription{
		Title:           "Backend Engineer",
		Description:     "Build services",
		RequiredSkills:  []string{"go", "postgres"},
		ExperienceYears: 3,
	}
	profile := map[string]any{"repos": 12, "languages": []string{"Go", "Rust"}}

	first := BuildPrompt(job, "resume text", profile)
	for i := 0; i < 10; i++ {
		if got := BuildPrompt(job, "resume text", profile); got != first {
			t.Fatal("prompt is not deterministic")
		}
	}
}

func TestBuildPrompt_Sections(t *testing.T) {
	job := &domain.JobDescription{Title: "SRE", RequiredSkills: []string{"kubernetes"}}

	p := BuildPrompt(job, "ops background", nil)
	if !strings.Contains(p, "Title: SRE") {
		t.Fatal("missing job title")
	}
	if !strings.Contains(p, "Required skills: kubernetes") {
		t.Fatal("missing required skills")
	}
	if !strings.Contains(p, "ops background") {
		t.Fatal("missing resume text")
	}
	if strings.Contains(p, "## Code profile") {
		t.Fatal("profile section present without profile data")
	}

	p = BuildPrompt(job, "ops background", map[string]any{"repos": 3})
	if !strings.Contains(p, "## Code profile") {
		t.Fatal("profile section missing")
	}
}

func TestBuildPrompt_TruncatesLongResume(t *testing.T) {
	job := &domain.JobDescription{Title: "Dev"}
	long := strings.Repeat("x", maxResumeChars+500)

	p := BuildPrompt(job, long, nil)
	if strings.Contains(p, strings.Repeat("x", maxResumeChars+1)) {
		t.Fatal("resume text was not truncated")
	}
	if !strings.Contains(p, strings.Repeat("x", maxResumeChars)) {
		t.Fatal("truncated resume text missing")
	}
}

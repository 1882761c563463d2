package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

// stubGenerator returns a canned response and remembers the last prompt.
type stubGenerator struct {
	response string
	err      error
	prompt   string
}

func (g *stubGenerator) Generate(_ context.Context, req extract.GenerateRequest) (string, error) {
	g.prompt = req.Prompt
	return g.response, g.err
}

func TestGradeParsesResponse(t *testing.T) {
	gen := &stubGenerator{response: `{"score": 85, "feedback": "Mostly right.", "missing_concepts": ["backpropagation"]}`}
	grader := NewGraderService(gen, nil, "moderate")

	result, err := grader.Grade(context.Background(), "What is gradient descent?", "An optimization method.", "Iterative optimization.")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 85 {
		t.Errorf("score = %d, want 85", result.Score)
	}
	if result.Feedback != "Mostly right." {
		t.Errorf("feedback = %q", result.Feedback)
	}
	if len(result.MissingConcepts) != 1 || result.MissingConcepts[0] != "backpropagation" {
		t.Errorf("missing concepts = %v", result.MissingConcepts)
	}
}

func TestGradeFencedResponse(t *testing.T) {
	gen := &stubGenerator{response: "```json\n{\"score\": 70, \"feedback\": \"ok\", \"missing_concepts\": []}\n```"}
	grader := NewGraderService(gen, nil, "moderate")

	result, err := grader.Grade(context.Background(), "Q", "A", "user answer")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 70 {
		t.Errorf("score = %d, want 70", result.Score)
	}
}

func TestGradeClampsScore(t *testing.T) {
	cases := []struct {
		response string
		want     int
	}{
		{`{"score": 150, "feedback": "f"}`, 100},
		{`{"score": -20, "feedback": "f"}`, 0},
		{`{"score": 0, "feedback": "f"}`, 0},
		{`{"score": 100, "feedback": "f"}`, 100},
	}
	for _, tc := range cases {
		gen := &stubGenerator{response: tc.response}
		grader := NewGraderService(gen, nil, "strict")
		result, err := grader.Grade(context.Background(), "Q", "A", "user answer")
		if err != nil {
			t.Fatalf("Grade(%q): %v", tc.response, err)
		}
		if result.Score != tc.want {
			t.Errorf("Grade(%q) score = %d, want %d", tc.response, result.Score, tc.want)
		}
	}
}

func TestGradeUnparsableFallsBackNeutral(t *testing.T) {
	gen := &stubGenerator{response: "The answer seems fine to me overall."}
	grader := NewGraderService(gen, nil, "moderate")

	result, err := grader.Grade(context.Background(), "Q", "A", "user answer")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 50 {
		t.Errorf("fallback score = %d, want 50", result.Score)
	}
	if !strings.Contains(result.Feedback, "seems fine") {
		t.Errorf("raw response not surfaced as feedback: %q", result.Feedback)
	}
}

func TestGradeGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	grader := NewGraderService(gen, nil, "moderate")

	if _, err := grader.Grade(context.Background(), "Q", "A", "user answer"); err == nil {
		t.Fatal("expected error from failed generation")
	}
}

func TestGradeNoGenerator(t *testing.T) {
	grader := NewGraderService(nil, nil, "moderate")
	if _, err := grader.Grade(context.Background(), "Q", "A", "user answer"); !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("err = %v, want ErrAIUnavailable", err)
	}
}

func TestGradePromptIncludesCourseContext(t *testing.T) {
	gen := &stubGenerator{response: `{"score": 60, "feedback": "f"}`}
	notes := &CourseContext{sections: []string{
		"Gradient descent minimizes a loss function by stepping along the negative gradient.",
		"Unrelated section about course logistics and exam dates.",
	}}
	grader := NewGraderService(gen, notes, "moderate")

	if _, err := grader.Grade(context.Background(), "Explain gradient descent and the loss function.", "ref", "ans"); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !strings.Contains(gen.prompt, "negative gradient") {
		t.Error("relevant course section missing from prompt")
	}
	if strings.Contains(gen.prompt, "course logistics") {
		t.Error("irrelevant section leaked into prompt")
	}
}

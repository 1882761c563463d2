package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

// GradeResult is the structured verdict on one user answer.
type GradeResult struct {
	Score           int      `json:"score"`
	Feedback        string   `json:"feedback"`
	MissingConcepts []string `json:"missing_concepts"`
}

// GraderService scores user answers against the extracted reference answer
// via the generation service.
type GraderService struct {
	gen        extract.Generator
	notes      *CourseContext
	strictness string
}

func NewGraderService(gen extract.Generator, notes *CourseContext, strictness string) *GraderService {
	return &GraderService{
		gen:        gen,
		notes:      notes,
		strictness: strictness,
	}
}

const (
	gradeTemperature = 0.2
	gradeMaxTokens   = 1024
)

var strictnessGuidance = map[string]string{
	"lenient":  "Award partial credit generously. Accept paraphrases and incomplete but directionally correct answers.",
	"moderate": "Award partial credit for answers covering the main ideas. Penalize missing key concepts moderately.",
	"strict":   "Require all key concepts to be present and correct. Award partial credit sparingly.",
}

// Grade asks the generation service to score the user's answer from 0 to 100
// against the reference answer. When the response cannot be parsed the grader
// falls back to a neutral score with the raw text as feedback rather than
// failing the attempt.
func (s *GraderService) Grade(ctx context.Context, question, reference, userAnswer string) (*GradeResult, error) {
	if s.gen == nil {
		return nil, ErrAIUnavailable
	}

	response, err := s.gen.Generate(ctx, extract.GenerateRequest{
		Prompt:          s.buildPrompt(question, reference, userAnswer),
		Temperature:     gradeTemperature,
		MaxOutputTokens: gradeMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("request grading: %w", err)
	}

	result := parseGradeResponse(response)
	return result, nil
}

func (s *GraderService) buildPrompt(question, reference, userAnswer string) string {
	guidance, ok := strictnessGuidance[s.strictness]
	if !ok {
		guidance = strictnessGuidance["moderate"]
	}

	var b strings.Builder
	b.WriteString("You are grading a student's answer to an exam question.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nReference answer:\n")
	b.WriteString(reference)

	if s.notes != nil {
		if sections := s.notes.RelevantSections(question, 3); len(sections) > 0 {
			b.WriteString("\n\nRelevant course material:\n")
			b.WriteString(strings.Join(sections, "\n---\n"))
		}
	}

	b.WriteString("\n\nStudent's answer:\n")
	b.WriteString(userAnswer)
	b.WriteString("\n\n")
	b.WriteString(guidance)
	b.WriteString("\n\nRespond with only a JSON object: ")
	b.WriteString(`{"score": <0-100 integer>, "feedback": "<2-3 sentences>", "missing_concepts": ["<concept>", ...]}`)
	return b.String()
}

// parseGradeResponse tolerates fenced or noisy responses by isolating the
// first JSON object; a response with no usable object grades neutral.
func parseGradeResponse(response string) *GradeResult {
	var result GradeResult
	if obj := extract.IsolateObject(response); obj != "" {
		if err := json.Unmarshal([]byte(obj), &result); err == nil {
			result.Score = clampScore(result.Score)
			return &result
		}
	}

	return &GradeResult{
		Score:    50,
		Feedback: strings.TrimSpace(response),
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

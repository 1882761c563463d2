package services

import (
	"strings"
	"testing"
)

func TestRelevantSectionsRanksByOverlap(t *testing.T) {
	ctx := &CourseContext{sections: []string{
		"Neural networks consist of layers of neurons connected by weights.",
		"Overfitting happens when a network memorizes training data instead of generalizing.",
		"The cafeteria menu changes weekly.",
	}}

	got := ctx.RelevantSections("What is overfitting in a neural network?", 2)
	if len(got) == 0 {
		t.Fatal("no sections returned")
	}
	if !strings.Contains(got[0], "Overfitting") {
		t.Errorf("best match = %q, want the overfitting section", got[0])
	}
	for _, section := range got {
		if strings.Contains(section, "cafeteria") {
			t.Error("zero-overlap section included")
		}
	}
}

func TestRelevantSectionsLimit(t *testing.T) {
	ctx := &CourseContext{sections: []string{
		"gradient methods part one",
		"gradient methods part two",
		"gradient methods part three",
	}}
	if got := ctx.RelevantSections("gradient methods", 2); len(got) != 2 {
		t.Errorf("got %d sections, want 2", len(got))
	}
}

func TestRelevantSectionsNilContext(t *testing.T) {
	var ctx *CourseContext
	if got := ctx.RelevantSections("anything", 3); got != nil {
		t.Errorf("nil context returned %v", got)
	}
}

func TestSplitSectionsMergesShortParagraphs(t *testing.T) {
	text := strings.Repeat("Short paragraph one.\n\n", 20)
	sections := splitSections(text)
	if len(sections) == 0 {
		t.Fatal("no sections produced")
	}
	for _, section := range sections[:len(sections)-1] {
		if len(section) < minSectionChars {
			t.Errorf("section shorter than minimum: %d chars", len(section))
		}
	}
}

func TestSplitSectionsTruncatesLong(t *testing.T) {
	text := strings.Repeat("x", 5000)
	sections := splitSections(text)
	for _, section := range sections {
		if len([]rune(section)) > maxSectionChars {
			t.Errorf("section exceeds max length: %d runes", len([]rune(section)))
		}
	}
}

package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

// CourseContext holds course note sections and picks the ones most relevant
// to a question, to ground grading prompts in the actual course material.
type CourseContext struct {
	sections []string
}

const (
	minSectionChars = 200
	maxSectionChars = 1500
)

var reWord = regexp.MustCompile(`[a-zA-Z]{4,}`)

// LoadCourseContext reads the course notes PDF and splits it into sections.
// An empty path means no course notes are configured.
func LoadCourseContext(pdfService *PDFService, path string) (*CourseContext, error) {
	if path == "" {
		return nil, nil
	}

	doc, err := pdfService.LoadPDF(path)
	if err != nil {
		return nil, fmt.Errorf("load course notes: %w", err)
	}

	var parts []string
	for i := 0; i < doc.PageCount(); i++ {
		if text, ok := doc.PageText(i); ok {
			parts = append(parts, extract.Normalize(text))
		}
	}

	return &CourseContext{sections: splitSections(strings.Join(parts, "\n\n"))}, nil
}

// splitSections merges paragraphs into chunks of roughly comparable size so
// relevance scoring has enough text per section to work with.
func splitSections(text string) []string {
	var sections []string
	var current strings.Builder

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		if current.Len() >= minSectionChars {
			sections = append(sections, truncateSection(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sections = append(sections, truncateSection(current.String()))
	}
	return sections
}

func truncateSection(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSectionChars {
		return s
	}
	return string(runes[:maxSectionChars])
}

// RelevantSections returns up to limit sections sharing the most keywords
// with the query, best match first. Sections with no overlap are excluded.
func (c *CourseContext) RelevantSections(query string, limit int) []string {
	if c == nil || len(c.sections) == 0 || limit <= 0 {
		return nil
	}

	keywords := make(map[string]struct{})
	for _, word := range reWord.FindAllString(strings.ToLower(query), -1) {
		keywords[word] = struct{}{}
	}
	if len(keywords) == 0 {
		return nil
	}

	type scored struct {
		index int
		score int
	}
	var matches []scored
	for i, section := range c.sections {
		score := 0
		seen := make(map[string]struct{})
		for _, word := range reWord.FindAllString(strings.ToLower(section), -1) {
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			if _, ok := keywords[word]; ok {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{index: i, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = c.sections[m.index]
	}
	return out
}

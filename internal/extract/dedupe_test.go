package extract

import (
	"strings"
	"testing"
)

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	pairs := []QAPair{
		{Question: "What is AI?", Answer: "first answer"},
		{Question: "Define ML", Answer: "machine learning"},
		{Question: "what is ai?", Answer: "second answer"},
		{Question: "  What is AI?  ", Answer: "third answer"},
	}

	got := Dedupe(pairs)
	if len(got) != 2 {
		t.Fatalf("got %d pairs, want 2", len(got))
	}
	if got[0].Answer != "first answer" {
		t.Errorf("kept %q for repeated question, want the first occurrence", got[0].Answer)
	}
	if got[1].Question != "Define ML" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestDedupeLongPrefixCoalesces(t *testing.T) {
	prefix := strings.Repeat("x", dedupeKeyLen)
	pairs := []QAPair{
		{Question: prefix + " variant one?", Answer: "a"},
		{Question: prefix + " variant two?", Answer: "b"},
	}
	got := Dedupe(pairs)
	if len(got) != 1 {
		t.Fatalf("got %d pairs, want 1: distinct tails beyond the key prefix coalesce", len(got))
	}
	if got[0].Answer != "a" {
		t.Errorf("kept %q, want first occurrence", got[0].Answer)
	}
}

func TestDedupeDistinctPreserved(t *testing.T) {
	pairs := []QAPair{
		{Question: "alpha?", Answer: "1"},
		{Question: "beta?", Answer: "2"},
		{Question: "gamma?", Answer: "3"},
	}
	got := Dedupe(pairs)
	if len(got) != 3 {
		t.Fatalf("got %d pairs, want 3", len(got))
	}
	for i, p := range pairs {
		if got[i] != p {
			t.Errorf("pair %d changed: %+v", i, got[i])
		}
	}
}

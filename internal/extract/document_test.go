package extract

import (
	"strings"
	"testing"
)

// stubDoc serves fixed page text; empty strings are pages without
// extractable text.
type stubDoc struct {
	pages []string
}

func (d stubDoc) PageCount() int { return len(d.pages) }

func (d stubDoc) PageText(i int) (string, bool) {
	if i < 0 || i >= len(d.pages) || d.pages[i] == "" {
		return "", false
	}
	return d.pages[i], true
}

func textPages(n int) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = "content of page " + string(rune('A'+i))
	}
	return pages
}

func TestBatchPagesRanges(t *testing.T) {
	doc := stubDoc{pages: textPages(7)}
	batches := BatchPages(doc, 3)

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	wantRanges := [][2]int{{0, 3}, {3, 6}, {6, 7}}
	for i, want := range wantRanges {
		if batches[i].Start != want[0] || batches[i].End != want[1] {
			t.Errorf("batch %d range [%d,%d), want [%d,%d)", i, batches[i].Start, batches[i].End, want[0], want[1])
		}
	}
}

func TestBatchPagesCoverage(t *testing.T) {
	for _, pageCount := range []int{0, 1, 2, 3, 7, 10, 11} {
		for _, perBatch := range []int{1, 3, 5} {
			doc := stubDoc{pages: textPages(pageCount)}
			batches := BatchPages(doc, perBatch)

			covered := make(map[int]int)
			for _, b := range batches {
				if b.End <= b.Start {
					t.Fatalf("pages=%d per=%d: empty range [%d,%d)", pageCount, perBatch, b.Start, b.End)
				}
				for p := b.Start; p < b.End; p++ {
					covered[p]++
				}
			}
			if len(covered) != pageCount {
				t.Fatalf("pages=%d per=%d: covered %d pages", pageCount, perBatch, len(covered))
			}
			for p, n := range covered {
				if n != 1 {
					t.Errorf("pages=%d per=%d: page %d covered %d times", pageCount, perBatch, p, n)
				}
			}
		}
	}
}

func TestBatchPagesBlankBatch(t *testing.T) {
	pages := textPages(7)
	pages[3], pages[4], pages[5] = "", "", ""
	batches := BatchPages(stubDoc{pages: pages}, 3)

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if batches[1].Text != "" {
		t.Errorf("all-blank batch has text %q", batches[1].Text)
	}
	if batches[0].Text == "" || batches[2].Text == "" {
		t.Error("non-blank batches lost their text")
	}
}

func TestBatchPagesMarkers(t *testing.T) {
	batches := BatchPages(stubDoc{pages: textPages(2)}, 3)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	for _, marker := range []string{"--- Page 1 ---", "--- Page 2 ---"} {
		if !strings.Contains(batches[0].Text, marker) {
			t.Errorf("batch text missing marker %q:\n%s", marker, batches[0].Text)
		}
	}
}

func TestBatchPagesEmptyDocument(t *testing.T) {
	if batches := BatchPages(stubDoc{}, 3); len(batches) != 0 {
		t.Errorf("empty document produced %d batches", len(batches))
	}
}

func TestBatchPagesDefaultSize(t *testing.T) {
	batches := BatchPages(stubDoc{pages: textPages(6)}, 0)
	if len(batches) != 2 {
		t.Errorf("got %d batches with default size, want 2", len(batches))
	}
}

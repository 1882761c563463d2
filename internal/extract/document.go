package extract

import (
	"fmt"
	"strings"
)

// DefaultPagesPerBatch is the number of document pages concatenated into one
// generation request.
const DefaultPagesPerBatch = 3

// Document is a page-indexed view of an uploaded file. Implementations must be
// immutable once loaded; the pipeline reads pages but never writes.
type Document interface {
	PageCount() int
	// PageText returns the extractable text of page i (0-based). The second
	// return is false when the page exposes no text at all, e.g. a pure scan.
	PageText(i int) (string, bool)
}

// PageBatch is a contiguous run of pages [Start, End) whose text has been
// concatenated into a single payload, each page prefixed with a marker. A
// batch whose pages were all blank has an empty Text and produces no
// generation call.
type PageBatch struct {
	Start int
	End   int
	Text  string
}

// BatchPages splits doc into fixed-size batches. Every page index in
// [0, PageCount) lands in exactly one batch, in ascending order; an empty
// document yields no batches.
func BatchPages(doc Document, pagesPerBatch int) []PageBatch {
	if pagesPerBatch <= 0 {
		pagesPerBatch = DefaultPagesPerBatch
	}

	total := doc.PageCount()
	var batches []PageBatch
	for start := 0; start < total; start += pagesPerBatch {
		end := start + pagesPerBatch
		if end > total {
			end = total
		}

		var builder strings.Builder
		for page := start; page < end; page++ {
			text, ok := doc.PageText(page)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			fmt.Fprintf(&builder, "--- Page %d ---\n", page+1)
			builder.WriteString(strings.TrimSpace(text))
			builder.WriteString("\n\n")
		}

		batches = append(batches, PageBatch{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(builder.String()),
		})
	}
	return batches
}

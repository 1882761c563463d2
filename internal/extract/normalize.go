package extract

import (
	"regexp"
	"strings"
)

var (
	reLowerUpper  = regexp.MustCompile(`([a-z])([A-Z])`)
	rePunctLetter = regexp.MustCompile(`([.!?,;:])([A-Za-z])`)
	reParenGap    = regexp.MustCompile(`([A-Za-z0-9])\(`)
	reHorizSpace  = regexp.MustCompile(`[ \t]+`)
	reBlankLines  = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// Normalize repairs the spacing artifacts PDF text extraction tends to
// produce: words stuck together across a case change, missing spaces after
// punctuation or before parentheses, and runaway whitespace. Applying it twice
// yields the same result as applying it once.
func Normalize(text string) string {
	if text == "" {
		return text
	}

	text = reLowerUpper.ReplaceAllString(text, "$1 $2")
	text = rePunctLetter.ReplaceAllString(text, "$1 $2")
	text = reParenGap.ReplaceAllString(text, "$1 (")
	text = reHorizSpace.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}

package extract

import "strings"

// dedupeKeyLen is the question prefix length used for duplicate detection.
// Adjacent batches can re-emit the same question with minor formatting drift,
// so exact matching is too strict; the long lower-cased prefix accepts that
// two genuinely distinct questions sharing it will coalesce.
const dedupeKeyLen = 150

// Dedupe keeps the first pair seen for each normalized question key,
// preserving input order.
func Dedupe(pairs []QAPair) []QAPair {
	if len(pairs) < 2 {
		return pairs
	}

	seen := make(map[string]struct{}, len(pairs))
	result := make([]QAPair, 0, len(pairs))
	for _, pair := range pairs {
		key := dedupeKey(pair.Question)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, pair)
	}
	return result
}

func dedupeKey(question string) string {
	key := strings.ToLower(strings.TrimSpace(question))
	if runes := []rune(key); len(runes) > dedupeKeyLen {
		key = string(runes[:dedupeKeyLen])
	}
	return key
}

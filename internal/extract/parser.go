package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// QAPair is the unit of output: a question and its reference answer. Both
// sides are non-empty after trimming and normalization; nothing else is
// guaranteed about their content.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Strategy names reported through the pipeline observer.
const (
	StrategyDelimiter        = "delimiter"
	StrategyDelimiterLenient = "delimiter_lenient"
	StrategyJSON             = "json"
	StrategyJSONRepair       = "json_repair"
	StrategyFieldPairs       = "field_pairs"
	StrategyPartialPairs     = "partial_pairs"
	StrategyLooseText        = "loose_text"
	StrategyNone             = "none"
)

type decodeStrategy struct {
	name   string
	decode func(string) []QAPair
}

var delimiterStrategies = []decodeStrategy{
	{StrategyDelimiter, decodeDelimited},
	{StrategyDelimiterLenient, decodeDelimitedLenient},
}

var structuredStrategies = []decodeStrategy{
	{StrategyJSON, decodeJSON},
	{StrategyJSONRepair, decodeJSONRepaired},
	{StrategyFieldPairs, decodeFieldPairs},
	{StrategyPartialPairs, decodePartialPairs},
	{StrategyLooseText, decodeLooseText},
}

// Decode converts one raw response into pairs. Strategies run in order of
// reliability and the first one producing at least one valid pair wins; the
// winning strategy's name is returned for observability. The delimiter
// strategies only apply when the delimiter dialect was requested, the
// structured chain serves both dialects.
func Decode(text string, dialect Dialect) ([]QAPair, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, StrategyNone
	}

	var strategies []decodeStrategy
	if dialect == DialectDelimiter {
		strategies = append(strategies, delimiterStrategies...)
	}
	strategies = append(strategies, structuredStrategies...)

	for _, s := range strategies {
		if pairs := validated(s.decode(text)); len(pairs) > 0 {
			return pairs, s.name
		}
	}
	return nil, StrategyNone
}

// validated drops candidates with an empty side and normalizes the rest.
func validated(candidates []QAPair) []QAPair {
	var pairs []QAPair
	for _, c := range candidates {
		question := Normalize(c.Question)
		answer := Normalize(c.Answer)
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer})
	}
	return pairs
}

var (
	reDelimited      = regexp.MustCompile(`(?is)===QUESTION===\s*(.*?)\s*===ANSWER===\s*(.*?)\s*===`)
	reQuestionMarker = regexp.MustCompile(`(?i)===QUESTION===`)
	reAnswerMarker   = regexp.MustCompile(`(?i)===ANSWER===`)
)

// decodeDelimited matches the strict marker pattern: question marker, question
// text, answer marker, answer text, terminator.
func decodeDelimited(text string) []QAPair {
	var pairs []QAPair
	for _, m := range reDelimited.FindAllStringSubmatch(text, -1) {
		pairs = append(pairs, QAPair{Question: m[1], Answer: m[2]})
	}
	return pairs
}

// decodeDelimitedLenient drops the terminator requirement: each answer runs to
// the next question marker or the end of the text. This recovers the final
// pair of a response truncated before its closing ===.
func decodeDelimitedLenient(text string) []QAPair {
	sections := reQuestionMarker.Split(text, -1)
	if len(sections) < 2 {
		return nil
	}

	var pairs []QAPair
	for _, section := range sections[1:] {
		parts := reAnswerMarker.Split(section, 2)
		if len(parts) < 2 {
			continue
		}
		answer := parts[1]
		if idx := strings.Index(answer, "==="); idx >= 0 {
			answer = answer[:idx]
		}
		pairs = append(pairs, QAPair{Question: parts[0], Answer: answer})
	}
	return pairs
}

func decodeJSON(text string) []QAPair {
	isolated := IsolateObject(text)
	if isolated == "" {
		return nil
	}
	return unmarshalPairs(isolated)
}

// decodeJSONRepaired retries strict deserialization after rewriting literal
// control characters found inside string literals as escape sequences.
func decodeJSONRepaired(text string) []QAPair {
	isolated := IsolateObject(text)
	if isolated == "" {
		return nil
	}
	return unmarshalPairs(escapeBareControls(isolated))
}

type qaEnvelope struct {
	QAPairs   []QAPair `json:"qa_pairs"`
	Questions []QAPair `json:"questions"`
	Pairs     []QAPair `json:"pairs"`
}

func unmarshalPairs(doc string) []QAPair {
	var env qaEnvelope
	if err := json.Unmarshal([]byte(doc), &env); err == nil {
		for _, pairs := range [][]QAPair{env.QAPairs, env.Questions, env.Pairs} {
			if len(pairs) > 0 {
				return pairs
			}
		}
		// the object may itself be a single pair
		var single QAPair
		if err := json.Unmarshal([]byte(doc), &single); err == nil && single.Question != "" {
			return []QAPair{single}
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code block, with or without a
// language tag, tolerating a missing closing fence.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	start := 3
	if nl := strings.Index(content[start:], "\n"); nl != -1 {
		start += nl + 1
	}
	if end := strings.Index(content[start:], "```"); end != -1 {
		content = content[start : start+end]
	} else {
		content = content[start:]
	}
	return strings.TrimSpace(content)
}

// IsolateObject returns the first balanced JSON object found in text, scanning
// character by character with a depth counter that ignores braces inside
// quoted strings. When the response was cut off before the object closed, the
// missing closing braces are synthesized for a best-effort completion. Returns
// "" when no opening brace exists.
func IsolateObject(text string) string {
	text = stripFences(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	text = text[start:]

	depth := 0
	inString := false
	escapeNext := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case escapeNext:
			escapeNext = false
		case ch == '\\':
			escapeNext = true
		case ch == '"':
			inString = !inString
		case inString:
			// braces inside string literals don't count
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	if depth > 0 {
		return strings.TrimRight(text, " \t\r\n") + strings.Repeat("}", depth)
	}
	return text
}

// escapeBareControls walks the document with the same in-string/escape state
// machine and rewrites raw newlines, carriage returns, and tabs inside string
// literals as their JSON escape sequences.
func escapeBareControls(doc string) string {
	var b strings.Builder
	b.Grow(len(doc) + 16)

	inString := false
	escapeNext := false
	for i := 0; i < len(doc); i++ {
		ch := doc[i]
		if escapeNext {
			b.WriteByte(ch)
			escapeNext = false
			continue
		}
		switch ch {
		case '\\':
			escapeNext = true
			b.WriteByte(ch)
		case '"':
			inString = !inString
			b.WriteByte(ch)
		case '\n':
			if inString {
				b.WriteString(`\n`)
			} else {
				b.WriteByte(ch)
			}
		case '\r':
			if inString {
				b.WriteString(`\r`)
			} else {
				b.WriteByte(ch)
			}
		case '\t':
			if inString {
				b.WriteString(`\t`)
			} else {
				b.WriteByte(ch)
			}
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

var (
	reFieldPair     = regexp.MustCompile(`(?s)"question"\s*:\s*"((?:[^"\\]|\\.)*)"\s*,\s*"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reQuestionField = regexp.MustCompile(`(?s)"question"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reAnswerField   = regexp.MustCompile(`(?s)"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reAnswerOpen    = regexp.MustCompile(`"answer"\s*:\s*"`)
)

var jsonTextUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\"`, `"`,
)

func unescapeJSONText(s string) string {
	return jsonTextUnescaper.Replace(s)
}

// decodeFieldPairs matches adjacent question/answer fields directly in the raw
// text. It tolerates documents that are not valid JSON at all but still carry
// the expected field names.
func decodeFieldPairs(text string) []QAPair {
	var pairs []QAPair
	for _, m := range reFieldPair.FindAllStringSubmatch(text, -1) {
		pairs = append(pairs, QAPair{
			Question: unescapeJSONText(m[1]),
			Answer:   unescapeJSONText(m[2]),
		})
	}
	return pairs
}

// decodePartialPairs recovers from responses truncated mid-answer: every
// question field is paired with whatever follows the next answer marker, up to
// the next question field or the end of the text, trimming trailing quote and
// comma artifacts.
func decodePartialPairs(text string) []QAPair {
	questionLocs := reQuestionField.FindAllStringSubmatchIndex(text, -1)
	if len(questionLocs) == 0 {
		return nil
	}

	var pairs []QAPair
	for i, loc := range questionLocs {
		question := unescapeJSONText(text[loc[2]:loc[3]])

		rest := text[loc[1]:]
		if i+1 < len(questionLocs) {
			rest = rest[:questionLocs[i+1][0]-loc[1]]
		}

		if m := reAnswerField.FindStringSubmatchIndex(rest); m != nil {
			pairs = append(pairs, QAPair{
				Question: question,
				Answer:   unescapeJSONText(rest[m[2]:m[3]]),
			})
			continue
		}

		open := reAnswerOpen.FindStringIndex(rest)
		if open == nil {
			continue
		}
		answer := strings.TrimSpace(rest[open[1]:])
		answer = strings.TrimRight(answer, `"`)
		answer = strings.TrimRight(answer, ",")
		pairs = append(pairs, QAPair{
			Question: question,
			Answer:   unescapeJSONText(answer),
		})
	}
	return pairs
}

var (
	reLooseQuestion = regexp.MustCompile(`(?i)^\s*(?:q(?:uestion)?\s*\d*\s*[:.)-]|\d+\s*[.)])\s*(.+)$`)
	reLooseAnswer   = regexp.MustCompile(`(?i)^\s*a(?:nswer)?\s*\d*\s*[:.)-]\s*(.+)$`)
)

// decodeLooseText is the last resort: lines that look like question or answer
// markers (Q:, 1., Answer:, a trailing question mark) are grouped into blocks
// and consecutive blocks are paired heuristically.
func decodeLooseText(text string) []QAPair {
	var pairs []QAPair
	var question, answer []string

	flush := func() {
		q := strings.TrimSpace(strings.Join(question, "\n"))
		a := strings.TrimSpace(strings.Join(answer, "\n"))
		if q != "" && a != "" {
			pairs = append(pairs, QAPair{Question: q, Answer: a})
		}
		question = nil
		answer = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := reLooseQuestion.FindStringSubmatch(trimmed); m != nil {
			flush()
			question = append(question, strings.TrimSpace(m[1]))
			continue
		}
		if m := reLooseAnswer.FindStringSubmatch(trimmed); m != nil {
			if len(question) == 0 {
				continue
			}
			answer = append(answer, strings.TrimSpace(m[1]))
			continue
		}
		if strings.HasSuffix(trimmed, "?") {
			if len(answer) > 0 {
				flush()
			}
			question = append(question, trimmed)
			continue
		}
		if len(question) > 0 {
			answer = append(answer, trimmed)
		}
	}
	flush()
	return pairs
}

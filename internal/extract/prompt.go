package extract

import "strings"

// Dialect selects the output format requested from the generation service.
type Dialect int

const (
	// DialectDelimiter asks for ===QUESTION===/===ANSWER=== tagged text. It is
	// the primary dialect: free-form generation cannot trip over escaping the
	// way it does with structured serialization.
	DialectDelimiter Dialect = iota
	// DialectJSON asks for a {"qa_pairs": [...]} envelope.
	DialectJSON
)

func (d Dialect) String() string {
	switch d {
	case DialectDelimiter:
		return "delimiter"
	case DialectJSON:
		return "json"
	default:
		return "unknown"
	}
}

// MaxPromptChars bounds the document text included in a single request.
const MaxPromptChars = 200_000

const truncationMarker = "\n\n[TRUNCATED: remaining document text omitted]"

const delimiterInstruction = `Extract ALL question-answer pairs from the exam document text below.

CRITICAL REQUIREMENTS:
1. Extract EVERY question-answer pair you can find
2. Only include pairs where BOTH question AND answer exist
3. Preserve all text, but fix spacing issues and formatting
4. Do not add explanations or commentary outside the markers

Format each pair exactly like this:
===QUESTION===
complete question text here
===ANSWER===
complete answer/solution text here
===

Extract all pairs now.`

const jsonInstruction = `Extract ALL question-answer pairs from the exam document text below.

CRITICAL REQUIREMENTS:
1. Extract EVERY question-answer pair you can find
2. Only include pairs where BOTH question AND answer exist
3. Return ONLY valid JSON, no markdown, no explanations
4. Escape all special characters properly in JSON (use \n for newlines, \" for quotes)
5. Ensure the JSON is complete and properly closed

Return a JSON object with this exact structure:
{
  "qa_pairs": [
    {
      "question": "complete question text here",
      "answer": "complete answer/solution text here"
    }
  ]
}

IMPORTANT: Make sure all newlines in text are escaped as \n in the JSON strings.
Extract all pairs now and return ONLY the JSON.`

// BuildPrompt produces the extraction instruction for one batch of document
// text. Input beyond MaxPromptChars is cut and marked so the model knows the
// text is incomplete.
func BuildPrompt(text string, dialect Dialect) string {
	if runes := []rune(text); len(runes) > MaxPromptChars {
		text = string(runes[:MaxPromptChars]) + truncationMarker
	}

	var builder strings.Builder
	builder.Grow(len(text) + 1024)
	if dialect == DialectJSON {
		builder.WriteString(jsonInstruction)
	} else {
		builder.WriteString(delimiterInstruction)
	}
	builder.WriteString("\n\nDocument text:\n")
	builder.WriteString(text)
	return builder.String()
}

package extract

import "context"

// GenerateRequest is one call to the external generation service.
type GenerateRequest struct {
	Prompt string
	// Attachment optionally carries the raw document (e.g. PDF bytes) for
	// services that accept a bulk payload alongside the prompt.
	Attachment      []byte
	Temperature     float32
	MaxOutputTokens int
}

// Generator is the boundary to the text generation service. Its output is
// untrusted: it may be empty, truncated mid-token, wrapped in markdown fences,
// or not the requested format at all. The pipeline never assumes otherwise.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

var (
	// ErrAIUnavailable is returned when the OpenAI integration is not configured.
	ErrAIUnavailable = errors.New("openai integration is not configured")
)

const generateTimeout = 3 * time.Minute

// GenerationService is the OpenAI-backed text generation boundary. It
// implements extract.Generator for the extraction pipeline and serves the
// grader's prompts directly.
type GenerationService struct {
	client *openai.Client
	model  string
}

var _ extract.Generator = (*GenerationService)(nil)

func NewGenerationService(apiKey, model, apiEndpoint string) *GenerationService {
	if apiKey == "" {
		return &GenerationService{}
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}

	return &GenerationService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *GenerationService) disabled() bool {
	return s == nil || s.client == nil || s.model == ""
}

// Available reports whether generation calls can be made at all.
func (s *GenerationService) Available() bool {
	return !s.disabled()
}

// Generate sends one prompt to the chat completion endpoint and returns the
// raw response text. When the request carries an attachment the document is
// sent alongside the prompt as a base64 data URI.
func (s *GenerationService) Generate(ctx context.Context, req extract.GenerateRequest) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}

	var message openai.ChatCompletionMessage
	if len(req.Attachment) > 0 {
		base64PDF := base64.StdEncoding.EncodeToString(req.Attachment)
		message = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: req.Prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:application/pdf;base64," + base64PDF,
					},
				},
			},
		}
	} else {
		message = openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    []openai.ChatCompletionMessage{message},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generation returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrServiceUnavailable means no generation service is configured at all;
// nothing can be extracted and the whole run fails up front.
var ErrServiceUnavailable = errors.New("generation service unavailable")

// Generation settings the extraction prompts were tuned for.
const (
	defaultTemperature     = 0.1
	defaultMaxOutputTokens = 32768
)

// BatchFailure records one batch whose generation call errored. The pipeline
// skips the batch and carries on; pairs from the remaining batches still make
// it into the result.
type BatchFailure struct {
	Index int
	Batch PageBatch
	Err   error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("batch %d (pages %d-%d): %v", f.Index, f.Batch.Start, f.Batch.End, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }

// Result is the merged, deduplicated output of one extraction run.
type Result struct {
	Pairs []QAPair
	// Attempted counts batches that produced a generation call; batches whose
	// pages were all blank are excluded.
	Attempted int
	Failures  []BatchFailure
}

// Pipeline turns a Document into QA pairs: batch the pages, prompt the
// generation service per batch (delimiter dialect first, JSON dialect as the
// per-batch retry), decode each response, then merge and deduplicate. Batches
// run strictly sequentially; the generation service is rate limited and one
// response in memory at a time is enough.
type Pipeline struct {
	gen           Generator
	obs           Observer
	pagesPerBatch int
	temperature   float32
	maxTokens     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithPagesPerBatch(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pagesPerBatch = n
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(p *Pipeline) {
		if obs != nil {
			p.obs = obs
		}
	}
}

func WithTemperature(t float32) Option {
	return func(p *Pipeline) { p.temperature = t }
}

func WithMaxOutputTokens(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

func NewPipeline(gen Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:           gen,
		obs:           NopObserver{},
		pagesPerBatch: DefaultPagesPerBatch,
		temperature:   defaultTemperature,
		maxTokens:     defaultMaxOutputTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract runs the full batching, prompting, decoding, and dedup sequence.
// Individual batch failures are recorded in the result, not returned; the
// hard errors are an unconfigured generation service and a cancelled context.
// A batch whose response decodes to zero pairs simply contributes nothing.
func (p *Pipeline) Extract(ctx context.Context, doc Document) (*Result, error) {
	if p == nil || p.gen == nil {
		return nil, ErrServiceUnavailable
	}

	batches := BatchPages(doc, p.pagesPerBatch)
	result := &Result{}
	var pairs []QAPair

	for i, batch := range batches {
		if batch.Text == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Attempted++
		p.obs.BatchStarted(i, len(batches), batch)

		started := time.Now()
		got, strategy, err := p.extractBatch(ctx, batch)
		if err != nil {
			failure := BatchFailure{Index: i, Batch: batch, Err: err}
			result.Failures = append(result.Failures, failure)
			p.obs.BatchFailed(i, err)
			continue
		}

		p.obs.BatchDecoded(i, strategy, len(got), time.Since(started))
		pairs = append(pairs, got...)
	}

	result.Pairs = Dedupe(pairs)
	return result, nil
}

// extractBatch makes up to two attempts: the delimiter dialect first, then
// the JSON dialect when the delimiter response decoded to nothing.
func (p *Pipeline) extractBatch(ctx context.Context, batch PageBatch) ([]QAPair, string, error) {
	pairs, strategy, err := p.attempt(ctx, batch, DialectDelimiter)
	if err != nil {
		return nil, "", err
	}
	if len(pairs) > 0 {
		return pairs, strategy, nil
	}
	return p.attempt(ctx, batch, DialectJSON)
}

func (p *Pipeline) attempt(ctx context.Context, batch PageBatch, dialect Dialect) ([]QAPair, string, error) {
	response, err := p.gen.Generate(ctx, GenerateRequest{
		Prompt:          BuildPrompt(batch.Text, dialect),
		Temperature:     p.temperature,
		MaxOutputTokens: p.maxTokens,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%s dialect: %w", dialect, err)
	}
	pairs, strategy := Decode(response, dialect)
	return pairs, strategy, nil
}

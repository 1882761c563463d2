package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// scriptedGenerator answers each call through fn and records every request.
type scriptedGenerator struct {
	fn    func(call int, req GenerateRequest) (string, error)
	calls []GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	call := len(g.calls)
	g.calls = append(g.calls, req)
	return g.fn(call, req)
}

// recordingObserver captures decoded-event strategies and counts.
type recordingObserver struct {
	started    int
	failed     int
	strategies []string
}

func (o *recordingObserver) BatchStarted(int, int, PageBatch) { o.started++ }
func (o *recordingObserver) BatchDecoded(_ int, strategy string, _ int, _ time.Duration) {
	o.strategies = append(o.strategies, strategy)
}
func (o *recordingObserver) BatchFailed(int, error) { o.failed++ }

func delimiterPair(q, a string) string {
	return fmt.Sprintf("===QUESTION===\n%s\n===ANSWER===\n%s\n===\n", q, a)
}

func TestExtractBlankBatchSkipped(t *testing.T) {
	pages := textPages(7)
	pages[3], pages[4], pages[5] = "", "", ""
	gen := &scriptedGenerator{fn: func(call int, _ GenerateRequest) (string, error) {
		return delimiterPair(fmt.Sprintf("Question %d?", call), fmt.Sprintf("Answer %d.", call)), nil
	}}
	obs := &recordingObserver{}

	result, err := NewPipeline(gen, WithObserver(obs)).Extract(context.Background(), stubDoc{pages: pages})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Attempted != 2 {
		t.Errorf("attempted %d batches, want 2 (blank batch dropped)", result.Attempted)
	}
	if len(gen.calls) != 2 {
		t.Errorf("generator called %d times, want 2", len(gen.calls))
	}
	if obs.started != 2 {
		t.Errorf("observer saw %d batch starts, want 2", obs.started)
	}
	if len(result.Pairs) != 2 {
		t.Errorf("got %d pairs, want 2", len(result.Pairs))
	}
}

func TestExtractPartialFailure(t *testing.T) {
	gen := &scriptedGenerator{fn: func(call int, _ GenerateRequest) (string, error) {
		if call == 1 {
			return "", errors.New("quota exceeded")
		}
		return delimiterPair(fmt.Sprintf("Question %d?", call), "An answer."), nil
	}}
	obs := &recordingObserver{}

	result, err := NewPipeline(gen, WithObserver(obs)).Extract(context.Background(), stubDoc{pages: textPages(9)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(result.Failures))
	}
	if result.Failures[0].Index != 1 {
		t.Errorf("failed batch index %d, want 1", result.Failures[0].Index)
	}
	if obs.failed != 1 {
		t.Errorf("observer saw %d failures, want 1", obs.failed)
	}
	if len(result.Pairs) != 2 {
		t.Fatalf("got %d pairs, want 2 from the surviving batches", len(result.Pairs))
	}
	if result.Pairs[0].Question != "Question 0?" || result.Pairs[1].Question != "Question 2?" {
		t.Errorf("pairs out of order: %+v", result.Pairs)
	}
}

func TestExtractJSONDialectRetry(t *testing.T) {
	gen := &scriptedGenerator{fn: func(_ int, req GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "qa_pairs") {
			return `{"qa_pairs":[{"question":"From retry?","answer":"Yes."}]}`, nil
		}
		return "nothing useful", nil
	}}
	obs := &recordingObserver{}

	result, err := NewPipeline(gen, WithObserver(obs)).Extract(context.Background(), stubDoc{pages: textPages(2)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("generator called %d times, want 2 (delimiter then json)", len(gen.calls))
	}
	if len(result.Pairs) != 1 || result.Pairs[0].Question != "From retry?" {
		t.Fatalf("pairs = %+v", result.Pairs)
	}
	if len(obs.strategies) != 1 || obs.strategies[0] != StrategyJSON {
		t.Errorf("strategies = %v, want [%s]", obs.strategies, StrategyJSON)
	}
}

func TestExtractDedupesAcrossBatches(t *testing.T) {
	gen := &scriptedGenerator{fn: func(call int, _ GenerateRequest) (string, error) {
		// both batches re-emit the same question near the boundary
		return delimiterPair("Shared question?", fmt.Sprintf("Answer from call %d.", call)), nil
	}}

	result, err := NewPipeline(gen).Extract(context.Background(), stubDoc{pages: textPages(6)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("got %d pairs, want 1 after dedup", len(result.Pairs))
	}
	if result.Pairs[0].Answer != "Answer from call 0." {
		t.Errorf("kept %q, want the first batch's answer", result.Pairs[0].Answer)
	}
}

func TestExtractEmptyDecodeIsNotAFailure(t *testing.T) {
	gen := &scriptedGenerator{fn: func(int, GenerateRequest) (string, error) {
		return "no pairs anywhere in this text", nil
	}}

	result, err := NewPipeline(gen).Extract(context.Background(), stubDoc{pages: textPages(3)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Errorf("empty decode recorded as failure: %+v", result.Failures)
	}
	if len(result.Pairs) != 0 {
		t.Errorf("got %d pairs from junk responses", len(result.Pairs))
	}
}

func TestExtractNoGenerator(t *testing.T) {
	_, err := NewPipeline(nil).Extract(context.Background(), stubDoc{pages: textPages(1)})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &scriptedGenerator{fn: func(int, GenerateRequest) (string, error) {
		return delimiterPair("Q?", "A."), nil
	}}
	_, err := NewPipeline(gen).Extract(ctx, stubDoc{pages: textPages(3)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(gen.calls) != 0 {
		t.Errorf("generator called %d times after cancellation", len(gen.calls))
	}
}

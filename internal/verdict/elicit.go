// Package verdict runs the bounded ask-and-parse loop shared by advocates
// and the mediator.
package verdict

import (
	"context"
	"fmt"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
)

// DefaultMaxRetries is the default number of language model calls per verdict
const DefaultMaxRetries = 3

// Elicitor asks a model for a verdict until one parses into the label set
type Elicitor struct {
	Provider      llm.Provider
	Parser        parse.ResponseParser
	Labels        model.LabelSet
	MaxRetries    int    // total calls, not additional ones
	ThinkingToken string // strip <token>...</token> before parsing

	// Optional hooks, called synchronously
	OnCall  func(attempt int)
	OnParse func(attempt int, ok bool)
}

// Answer is a successfully parsed verdict
type Answer struct {
	Result   parse.Result
	Raw      string
	Attempts int
}

// Elicit sends req up to MaxRetries times. A response that breaks the
// parser contract or names a label outside the set is retried. When every
// attempt fails to parse the error is model.ErrParse and Attempts is still
// reported. A provider error is returned at once.
func (e Elicitor) Elicit(ctx context.Context, req llm.ChatRequest) (Answer, error) {
	max := e.MaxRetries
	if max <= 0 {
		max = DefaultMaxRetries
	}

	for attempt := 1; attempt <= max; attempt++ {
		if e.OnCall != nil {
			e.OnCall(attempt)
		}

		resp, err := e.Provider.Chat(ctx, req)
		if err != nil {
			return Answer{Attempts: attempt}, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		text := parse.StripThinking(resp.Content, e.ThinkingToken)
		res, ok := e.Parser.Parse(text)
		if ok {
			var label string
			label, ok = e.Labels.Resolve(res.Label)
			res.Label = label
		}
		if e.OnParse != nil {
			e.OnParse(attempt, ok)
		}
		if ok {
			return Answer{Result: res, Raw: resp.Content, Attempts: attempt}, nil
		}
	}

	return Answer{Attempts: max}, model.ErrParse
}

// Package mediator combines advocate verdicts into the final verdict.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/verdict"
)

// Config holds mediator settings
type Config struct {
	Labels     model.LabelSet
	Parser     parse.ResponseParser
	MaxRetries int `validate:"gte=1"`

	Temperature   float64 `validate:"gte=0,lte=2"`
	MaxTokens     int     `validate:"gte=0"`
	ThinkingToken string

	SystemTemplate string
	UserTemplate   string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Labels:      model.DefaultLabelSet(),
		Parser:      parse.ParensParser{},
		MaxRetries:  verdict.DefaultMaxRetries,
		Temperature: 0.1,
	}
}

var validate = validator.New()

// Outcome is the synthesized verdict together with the exact input it was
// derived from
type Outcome struct {
	Verdict  model.Verdict
	Attempts int
	Inputs   []model.Verdict
}

// Mediator asks a model to reconcile advocate verdicts
type Mediator struct {
	config   Config
	provider llm.Provider
	system   *prompts.Template
	user     *prompts.Template
	logger   *logging.Logger
}

// New validates cfg and compiles the prompts
func New(cfg Config, provider llm.Provider, logger *logging.Logger) (*Mediator, error) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = verdict.DefaultMaxRetries
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &model.ConfigError{Field: "mediator", Reason: "invalid settings", Err: err}
	}
	if cfg.Parser == nil {
		return nil, &model.ConfigError{Field: "mediator.parser", Reason: "response parser is required"}
	}
	if cfg.Labels.Len() == 0 {
		return nil, &model.ConfigError{Field: "labels", Reason: "label set is required"}
	}
	if provider == nil {
		return nil, &model.ConfigError{Field: "llm", Reason: "language model provider is required"}
	}

	system, err := prompts.ParseOr("mediator_system", cfg.SystemTemplate, prompts.MediatorSystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.ParseOr("mediator_user", cfg.UserTemplate, prompts.MediatorUser)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Mediator{config: cfg, provider: provider, system: system, user: user, logger: logger}, nil
}

// FormatVerdicts renders one <verdict>..</verdict><reasoning>..</reasoning>
// line per input, in order
func FormatVerdicts(verdicts []model.Verdict) string {
	var b strings.Builder
	for i, v := range verdicts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<verdict>%s</verdict><reasoning>%s</reasoning>", v.Label, v.Reasoning)
	}
	return b.String()
}

// Synthesize makes one decision over the ordered advocate verdicts. An
// empty list is valid. Parse exhaustion yields the parse-error sentinel;
// a language model failure returns *model.StageError.
func (m *Mediator) Synthesize(ctx context.Context, verdicts []model.Verdict, claim model.Claim) (Outcome, error) {
	inputs := make([]model.Verdict, len(verdicts))
	copy(inputs, verdicts)
	out := Outcome{Inputs: inputs}

	labels := m.config.Labels.Options()
	data := prompts.MediatorData{
		Claim:    string(claim),
		Verdicts: FormatVerdicts(inputs),
		Count:    len(inputs),
		Labels:   labels,
		Contract: m.config.Parser.ContractInstructions(labels),
	}
	system, err := m.system.Render(data)
	if err != nil {
		return out, &model.StageError{Stage: model.StageMediator, Err: err}
	}
	user, err := m.user.Render(data)
	if err != nil {
		return out, &model.StageError{Stage: model.StageMediator, Err: err}
	}

	elicitor := verdict.Elicitor{
		Provider:      m.provider,
		Parser:        m.config.Parser,
		Labels:        m.config.Labels,
		MaxRetries:    m.config.MaxRetries,
		ThinkingToken: m.config.ThinkingToken,
		OnParse: func(attempt int, ok bool) {
			if !ok {
				m.logger.Warn("unparseable mediator verdict", "attempt", attempt)
			}
		},
	}

	ans, err := elicitor.Elicit(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: m.config.Temperature,
		MaxTokens:   m.config.MaxTokens,
	})
	out.Attempts = ans.Attempts
	switch {
	case errors.Is(err, model.ErrParse):
		out.Verdict = model.Verdict{Label: model.ParseErrorLabel, Reasoning: model.NoReasoning}
		return out, nil
	case err != nil:
		return out, &model.StageError{Stage: model.StageMediator, Err: err}
	}

	out.Verdict = model.Verdict{Label: ans.Result.Label, Reasoning: ans.Result.Reasoning}
	m.logger.Debug("mediator verdict", "label", out.Verdict.Label, "attempts", out.Attempts)
	return out, nil
}

// Package advocate evaluates a claim against the evidence of a single source.
package advocate

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/tribunal/internal/evidence"
	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/verdict"
)

// Config holds the settings of one advocate
type Config struct {
	Name       string `validate:"required"`
	Labels     model.LabelSet
	Parser     parse.ResponseParser
	MaxRetries int `validate:"gte=1"`

	Temperature   float64 `validate:"gte=0,lte=2"`
	MaxTokens     int     `validate:"gte=0"`
	ThinkingToken string

	// Template overrides; blank uses the built-in prompts
	SystemTemplate string
	UserTemplate   string

	Domain    prompts.Domain
	Authority string

	Observer Observer
}

// DefaultConfig returns an advocate config with the default label set and parser
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		Labels:      model.DefaultLabelSet(),
		Parser:      parse.ParensParser{},
		MaxRetries:  verdict.DefaultMaxRetries,
		Temperature: 0.1,
	}
}

var validate = validator.New()

// Advocate gathers evidence from one source and asks a model for a verdict
type Advocate struct {
	config   Config
	gatherer *evidence.Gatherer
	expander *evidence.Expander
	provider llm.Provider
	system   *prompts.Template
	user     *prompts.Template
	logger   *logging.Logger
}

// New validates cfg. The expander is optional; without it an empty
// retrieval goes straight to the insufficient-evidence verdict.
func New(cfg Config, gatherer *evidence.Gatherer, expander *evidence.Expander, provider llm.Provider, logger *logging.Logger) (*Advocate, error) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = verdict.DefaultMaxRetries
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &model.ConfigError{Field: "advocate", Reason: fmt.Sprintf("invalid settings for %q", cfg.Name), Err: err}
	}
	if cfg.Parser == nil {
		return nil, &model.ConfigError{Field: "parser", Reason: "response parser is required"}
	}
	if cfg.Labels.Len() == 0 {
		return nil, &model.ConfigError{Field: "labels", Reason: "label set is required"}
	}
	if gatherer == nil {
		return nil, &model.ConfigError{Field: "advocate", Reason: fmt.Sprintf("%q has no evidence gatherer", cfg.Name)}
	}
	if provider == nil {
		return nil, &model.ConfigError{Field: "llm", Reason: "language model provider is required"}
	}

	system, err := prompts.ParseOr("advocate_system", cfg.SystemTemplate, prompts.AdvocateSystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.ParseOr("advocate_user", cfg.UserTemplate, prompts.AdvocateUser)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Advocate{
		config:   cfg,
		gatherer: gatherer,
		expander: expander,
		provider: provider,
		system:   system,
		user:     user,
		logger:   logger.WithAdvocate(cfg.Name),
	}, nil
}

// Name returns the advocate's source name
func (a *Advocate) Name() string {
	return a.config.Name
}

// Evaluate runs one claim through retrieval, optional expansion and the
// verdict loop. Empty evidence and unparseable responses produce sentinel
// verdicts; only language model failures return an error, as *model.StageError.
func (a *Advocate) Evaluate(ctx context.Context, claim model.Claim) (model.AdvocateResult, error) {
	result := model.AdvocateResult{Name: a.config.Name, Authority: a.config.Authority}

	a.emit(StateGatherEvidence, 0)
	primary := a.gatherer.Gather(ctx, claim)
	result.Queries = append(result.Queries, primary.Query)
	items := primary.Items

	if len(items) == 0 && a.expander != nil {
		a.emit(StateExpandIfEmpty, 0)
		for _, passage := range a.expander.Expand(ctx, claim, a.config.Domain) {
			out := a.gatherer.GatherQuery(ctx, passage)
			result.Queries = append(result.Queries, passage)
			items = append(items, out.Items...)
		}
	}
	result.Evidence = items

	if len(items) == 0 {
		a.emit(StateForcedInsufficient, 0)
		result.Verdict = model.Verdict{Label: a.config.Labels.Insufficient(), Reasoning: model.NoEvidenceReasoning}
		result.Status = model.StatusInsufficientEvidence
		return result, nil
	}

	req, err := a.buildRequest(claim, items)
	if err != nil {
		return result, &model.StageError{Stage: model.StageAdvocate, Name: a.config.Name, Err: err}
	}

	elicitor := verdict.Elicitor{
		Provider:      a.provider,
		Parser:        a.config.Parser,
		Labels:        a.config.Labels,
		MaxRetries:    a.config.MaxRetries,
		ThinkingToken: a.config.ThinkingToken,
		OnCall: func(attempt int) {
			if attempt > 1 {
				a.emit(StateRetry, attempt)
			}
			a.emit(StateScoreWithLLM, attempt)
		},
		OnParse: func(attempt int, ok bool) {
			a.emit(StateParse, attempt)
			if !ok {
				a.logger.Warn("unparseable verdict", "attempt", attempt)
			}
		},
	}

	ans, err := elicitor.Elicit(ctx, req)
	result.Attempts = ans.Attempts
	switch {
	case errors.Is(err, model.ErrParse):
		a.emit(StateParseError, ans.Attempts)
		result.Verdict = model.Verdict{Label: model.ParseErrorLabel, Reasoning: model.NoReasoning}
		result.Status = model.StatusParseError
		return result, nil
	case err != nil:
		return result, &model.StageError{Stage: model.StageAdvocate, Name: a.config.Name, Err: err}
	}

	a.emit(StateDone, ans.Attempts)
	result.Verdict = model.Verdict{Label: ans.Result.Label, Reasoning: a.reasoning(ans.Result.Reasoning)}
	result.Annotations = ans.Result.Annotations
	result.Status = model.StatusOK
	return result, nil
}

func (a *Advocate) buildRequest(claim model.Claim, items []model.EvidenceItem) (llm.ChatRequest, error) {
	labels := a.config.Labels.Options()
	data := prompts.AdvocateData{
		Claim:     string(claim),
		Source:    a.config.Name,
		Authority: a.config.Authority,
		Domain:    a.config.Domain,
		Evidence:  items,
		Labels:    labels,
		Contract:  a.config.Parser.ContractInstructions(labels),
	}

	system, err := a.system.Render(data)
	if err != nil {
		return llm.ChatRequest{}, err
	}
	user, err := a.user.Render(data)
	if err != nil {
		return llm.ChatRequest{}, err
	}

	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	}, nil
}

// reasoning prefixes domain advocates' reasoning with their perspective
func (a *Advocate) reasoning(text string) string {
	if a.config.Domain.Name == "" {
		return text
	}
	return fmt.Sprintf("From the perspective of %s expertise: %s", a.config.Domain.Name, text)
}

func (a *Advocate) emit(s State, attempt int) {
	a.logger.Debug("advocate state", "state", s.String(), "attempt", attempt)
	if a.config.Observer != nil {
		a.config.Observer(Event{Advocate: a.config.Name, State: s, Attempt: attempt})
	}
}

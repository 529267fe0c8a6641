package evidence

import (
	"context"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/util"
)

// ExpanderConfig controls hypothetical-passage generation
type ExpanderConfig struct {
	Count       int     `validate:"gte=1"`
	MaxLength   int     `validate:"gte=1"` // characters
	Temperature float64 `validate:"gte=0,lte=2"` // zero selects the default 0.7
	MaxTokens   int     `validate:"gte=0"`

	// Template overrides; blank uses the built-in prompts
	SystemTemplate string
	UserTemplate   string
}

// DefaultExpanderConfig returns sensible defaults
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		Count:       1,
		MaxLength:   500,
		Temperature: 0.7,
	}
}

// Expander asks a language model for passages that would settle a claim.
// The passages are used as substitute retrieval queries.
type Expander struct {
	provider llm.Provider
	config   ExpanderConfig
	system   *prompts.Template
	user     *prompts.Template
	logger   *logging.Logger
}

// NewExpander validates cfg and compiles the prompt templates
func NewExpander(provider llm.Provider, cfg ExpanderConfig, logger *logging.Logger) (*Expander, error) {
	if provider == nil {
		return nil, &model.ConfigError{Field: "expansion", Reason: "language model provider is required"}
	}
	def := DefaultExpanderConfig()
	if cfg.Count == 0 {
		cfg.Count = def.Count
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &model.ConfigError{Field: "expansion", Reason: "invalid expansion settings", Err: err}
	}

	system, err := prompts.ParseOr("expansion_system", cfg.SystemTemplate, prompts.ExpansionSystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.ParseOr("expansion_user", cfg.UserTemplate, prompts.ExpansionUser)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Expander{
		provider: provider,
		config:   cfg,
		system:   system,
		user:     user,
		logger:   logger,
	}, nil
}

// Expand makes Count attempts and returns the passages that were produced.
// Failed attempts are logged and skipped; an empty result is not an error.
func (e *Expander) Expand(ctx context.Context, claim model.Claim, domain prompts.Domain) []string {
	data := prompts.ExpansionData{
		Claim:     string(claim),
		Domain:    domain,
		MaxLength: e.config.MaxLength,
	}
	system, err := e.system.Render(data)
	if err != nil {
		e.logger.Warn("expansion prompt failed", "error", err)
		return nil
	}
	user, err := e.user.Render(data)
	if err != nil {
		e.logger.Warn("expansion prompt failed", "error", err)
		return nil
	}

	req := llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
	}

	var passages []string
	for attempt := 1; attempt <= e.config.Count; attempt++ {
		if ctx.Err() != nil {
			break
		}

		resp, err := e.provider.Chat(ctx, req)
		if err != nil {
			e.logger.Warn("expansion call failed", "attempt", attempt, "error", err)
			continue
		}

		passage, ok := parse.ExtractPassage(resp.Content)
		if !ok {
			e.logger.Warn("expansion response has no passage", "attempt", attempt)
			continue
		}

		if n := len([]rune(passage)); n > e.config.MaxLength {
			e.logger.Info("expansion passage truncated", "attempt", attempt, "length", n, "max", e.config.MaxLength)
			passage = string([]rune(passage)[:e.config.MaxLength])
		}
		e.logger.Debug("expansion passage", "attempt", attempt, "passage", util.Truncate(passage, 80))
		passages = append(passages, passage)
	}
	return passages
}

// Package strategy runs the multi-advocate consensus protocol for one claim:
// every source's advocate evaluates independently, then the mediator
// decides over their verdicts in configuration order.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/tribunal/internal/advocate"
	"github.com/ppiankov/tribunal/internal/evidence"
	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/mediator"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/store"
)

// SourceConfig describes one advocate. Exactly one of Store and
// StoreOptions is needed; Store wins when both are set.
type SourceConfig struct {
	Name         string              `validate:"required"`
	Store        store.DocumentStore `validate:"-"`
	StoreOptions *store.Options      `validate:"-"`

	Evidence  evidence.Config
	Expansion *evidence.ExpanderConfig `validate:"-"` // nil disables query expansion

	Domain       prompts.Domain `validate:"-"`
	Authority    string
	SystemPrompt string
}

// Config is the full protocol configuration
type Config struct {
	Sources []SourceConfig `validate:"required,min=1,dive"`
	Labels  model.LabelSet `validate:"-"`

	// Advocate holds the settings shared by every advocate; Name, Domain,
	// Authority and SystemTemplate are filled per source.
	Advocate advocate.Config `validate:"-"`
	Mediator mediator.Config `validate:"-"`

	// Concurrency bounds the advocates evaluated at once; zero runs all
	// of them in parallel and one is the sequential baseline.
	Concurrency int `validate:"gte=0"`
}

// Deps are the collaborators shared by all advocates
type Deps struct {
	Provider llm.Provider

	// ExpansionProvider generates expansion passages; nil uses Provider
	ExpansionProvider llm.Provider

	// Embedder is required only for sources configured with StoreOptions
	Embedder llm.Embedder

	Logger *logging.Logger
}

var validate = validator.New()

// Strategy evaluates claims. It is safe for concurrent use.
type Strategy struct {
	advocates   []*advocate.Advocate
	mediator    *mediator.Mediator
	concurrency int
	owned       []store.Store
	logger      *logging.Logger
}

// New validates cfg and builds every advocate, opening stores for sources
// that only carry options. Any problem is a *model.ConfigError or a store
// connection error; nothing is built partially.
func New(ctx context.Context, cfg Config, deps Deps) (_ *Strategy, err error) {
	if len(cfg.Sources) == 0 {
		return nil, &model.ConfigError{Field: "sources", Reason: "at least one source is required"}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &model.ConfigError{Field: "strategy", Reason: "invalid settings", Err: err}
	}
	if deps.Provider == nil {
		return nil, &model.ConfigError{Field: "llm", Reason: "language model provider is required"}
	}
	if cfg.Labels.Len() == 0 {
		cfg.Labels = model.DefaultLabelSet()
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if seen[src.Name] {
			return nil, &model.ConfigError{Field: "sources", Reason: fmt.Sprintf("duplicate source name %q", src.Name)}
		}
		seen[src.Name] = true
		if src.Store == nil && src.StoreOptions == nil {
			return nil, &model.ConfigError{Field: "sources", Reason: fmt.Sprintf("source %q has neither a store nor store options", src.Name)}
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	expansionLLM := deps.ExpansionProvider
	if expansionLLM == nil {
		expansionLLM = deps.Provider
	}

	s := &Strategy{concurrency: cfg.Concurrency, logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	for _, src := range cfg.Sources {
		docs := src.Store
		if docs == nil {
			opened, openErr := store.New(ctx, *src.StoreOptions, deps.Embedder)
			if openErr != nil {
				return nil, fmt.Errorf("open store for source %q: %w", src.Name, openErr)
			}
			s.owned = append(s.owned, opened)
			docs = opened
		}

		gatherer, gErr := evidence.NewGatherer(docs, src.Evidence, logger.WithAdvocate(src.Name))
		if gErr != nil {
			return nil, gErr
		}

		var expander *evidence.Expander
		if src.Expansion != nil {
			expander, err = evidence.NewExpander(expansionLLM, *src.Expansion, logger.WithAdvocate(src.Name))
			if err != nil {
				return nil, err
			}
		}

		acfg := cfg.Advocate
		acfg.Name = src.Name
		acfg.Labels = cfg.Labels
		acfg.Domain = src.Domain
		acfg.Authority = src.Authority
		if acfg.Parser == nil {
			acfg.Parser = parse.ParensParser{}
		}
		if src.SystemPrompt != "" {
			acfg.SystemTemplate = src.SystemPrompt
		}
		adv, aErr := advocate.New(acfg, gatherer, expander, deps.Provider, logger)
		if aErr != nil {
			return nil, aErr
		}
		s.advocates = append(s.advocates, adv)
	}

	mcfg := cfg.Mediator
	mcfg.Labels = cfg.Labels
	if mcfg.Parser == nil {
		mcfg.Parser = parse.ParensParser{}
	}
	s.mediator, err = mediator.New(mcfg, deps.Provider, logger)
	if err != nil {
		return nil, err
	}

	if s.concurrency == 0 || s.concurrency > len(s.advocates) {
		s.concurrency = len(s.advocates)
	}
	return s, nil
}

// Advocates returns the advocate names in configuration order
func (s *Strategy) Advocates() []string {
	names := make([]string, len(s.advocates))
	for i, a := range s.advocates {
		names[i] = a.Name()
	}
	return names
}

// EvaluateClaim runs every advocate, then the mediator. The first
// unrecoverable advocate error cancels the remaining advocates and fails the
// claim; parse failures and empty evidence do not.
func (s *Strategy) EvaluateClaim(ctx context.Context, claim model.Claim) (*model.EvaluationRecord, error) {
	logger := s.logger.WithClaim(string(claim))
	started := time.Now()

	results := make([]model.AdvocateResult, len(s.advocates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, adv := range s.advocates {
		g.Go(func() error {
			res, err := adv.Evaluate(gctx, claim)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("claim evaluation failed")
		var stageErr *model.StageError
		if errors.As(err, &stageErr) {
			return nil, err
		}
		return nil, fmt.Errorf("evaluate advocates: %w", err)
	}

	record := &model.EvaluationRecord{
		ID:        uuid.New().String(),
		Claim:     claim,
		Advocates: results,
		StartedAt: started,
	}

	verdicts := make([]model.Verdict, len(results))
	for i, r := range results {
		verdicts[i] = r.Verdict
	}
	out, err := s.mediator.Synthesize(ctx, verdicts, claim)
	if err != nil {
		logger.WithError(err).Error("mediation failed")
		return nil, err
	}
	record.Final = out.Verdict
	record.MediatorAttempts = out.Attempts
	record.Duration = time.Since(started)

	logger.Info("claim evaluated", "verdict", record.Final.Label, "duration", record.Duration)
	return record, nil
}

// Close releases stores opened from StoreOptions
func (s *Strategy) Close() error {
	var errs []error
	for _, st := range s.owned {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.owned = nil
	return errors.Join(errs...)
}

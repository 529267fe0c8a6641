// Package pipeline assembles the evaluation stack from configuration: the
// language model and embedding clients, caches, rate limiting, document
// stores, the consensus strategy and the record sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/tribunal/internal/advocate"
	"github.com/ppiankov/tribunal/internal/cache"
	"github.com/ppiankov/tribunal/internal/evidence"
	"github.com/ppiankov/tribunal/internal/ingest"
	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/mediator"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/parse"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/report"
	"github.com/ppiankov/tribunal/internal/store"
	"github.com/ppiankov/tribunal/internal/strategy"
	"github.com/ppiankov/tribunal/internal/worker"
)

// Options overrides collaborators that are otherwise built from configuration
type Options struct {
	Logger   *logging.Logger
	Provider llm.Provider
	Embedder llm.Embedder
	Sink     report.Sink
}

// Pipeline evaluates claims with a fully wired strategy
type Pipeline struct {
	config   *model.Config
	labels   model.LabelSet
	strategy *strategy.Strategy
	embedder llm.Embedder
	sink     report.Sink
	closers  []func() error
	logger   *logging.Logger
}

// New builds the pipeline described by cfg
func New(ctx context.Context, cfg *model.Config, opts Options) (_ *Pipeline, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	p := &Pipeline{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	p.labels, err = LabelSet(cfg.Labels)
	if err != nil {
		return nil, err
	}

	limiter := newLimiter(cfg.RateLimiting)

	provider := opts.Provider
	if provider == nil {
		provider, err = NewProvider(cfg.LLM)
		if err != nil {
			return nil, err
		}
	}
	provider = worker.NewLimitedProvider(provider, limiter)

	p.embedder, err = p.buildEmbedder(cfg, opts.Embedder, limiter)
	if err != nil {
		return nil, err
	}

	scfg, err := StrategyConfig(cfg, p.labels)
	if err != nil {
		return nil, err
	}
	p.strategy, err = strategy.New(ctx, scfg, strategy.Deps{
		Provider: provider,
		Embedder: p.embedder,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, p.strategy.Close)

	p.sink = opts.Sink
	if p.sink == nil && len(cfg.Kafka.Brokers) > 0 {
		sink, err := report.NewKafkaSink(report.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, err
		}
		p.sink = sink
	}
	if p.sink != nil {
		p.closers = append(p.closers, p.sink.Close)
	}

	return p, nil
}

// NewProvider builds the chat provider from config and the environment
func NewProvider(m model.LLMConfig) (llm.Provider, error) {
	cfg, err := llm.LoadConfigFromEnv(llm.ConfigFromModel(m))
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize llm provider: %w", err)
	}
	return provider, nil
}

func newLimiter(cfg model.RateLimitingConfig) *worker.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	return worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
}

// buildEmbedder wraps the embedding backend with the configured cache layers
// and rate limiter
func (p *Pipeline) buildEmbedder(cfg *model.Config, override llm.Embedder, limiter *worker.Limiter) (llm.Embedder, error) {
	inner := override
	if inner == nil {
		ecfg, err := llm.LoadEmbeddingConfigFromEnv(llm.EmbeddingConfigFromModel(cfg.Embedding))
		if err != nil {
			return nil, err
		}
		inner, err = llm.NewEmbedder(ecfg)
		if err != nil {
			return nil, fmt.Errorf("initialize embedder: %w", err)
		}
	}
	inner = worker.NewLimitedEmbedder(inner, limiter)

	if !cfg.Cache.Enabled {
		return inner, nil
	}
	c, err := p.buildCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	return llm.NewCachedEmbedder(inner, c, cfg.Cache.DiskTTL), nil
}

// buildCache layers memory, then disk, then redis, skipping unconfigured tiers
func (p *Pipeline) buildCache(cfg model.CacheConfig) (cache.Cache, error) {
	layers := []cache.Cache{cache.NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)}
	if cfg.DiskDir != "" {
		layers = append(layers, cache.NewDiskCache(cfg.DiskDir, cfg.DiskTTL))
	}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.DiskTTL)
		if err != nil {
			return nil, fmt.Errorf("initialize redis cache: %w", err)
		}
		p.closers = append(p.closers, rc.Close)
		layers = append(layers, rc)
	}
	return cache.NewLayeredCache(layers...), nil
}

// LabelSet builds the configured label vocabulary; no options means the default one
func LabelSet(cfg model.LabelsConfig) (model.LabelSet, error) {
	if len(cfg.Options) == 0 {
		return model.DefaultLabelSet(), nil
	}
	insufficient := cfg.Insufficient
	if insufficient == "" {
		insufficient = model.LabelNotEnoughInformation
	}
	return model.NewLabelSet(cfg.Options, insufficient)
}

// StrategyConfig translates file configuration into strategy configuration
func StrategyConfig(cfg *model.Config, labels model.LabelSet) (strategy.Config, error) {
	advParser, err := parse.New(cfg.Advocate.Parser)
	if err != nil {
		return strategy.Config{}, err
	}
	medParser, err := parse.New(cfg.Mediator.Parser)
	if err != nil {
		return strategy.Config{}, err
	}

	acfg := advocate.DefaultConfig("")
	acfg.Parser = advParser
	applyStep(&acfg.MaxRetries, &acfg.Temperature, &acfg.MaxTokens, &acfg.ThinkingToken, cfg.Advocate)
	acfg.SystemTemplate = cfg.Advocate.SystemPrompt

	mcfg := mediator.DefaultConfig()
	mcfg.Parser = medParser
	applyStep(&mcfg.MaxRetries, &mcfg.Temperature, &mcfg.MaxTokens, &mcfg.ThinkingToken, cfg.Mediator)
	mcfg.SystemTemplate = cfg.Mediator.SystemPrompt

	sources := make([]strategy.SourceConfig, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sc, err := sourceConfig(src)
		if err != nil {
			return strategy.Config{}, err
		}
		sources = append(sources, sc)
	}

	return strategy.Config{
		Sources:     sources,
		Labels:      labels,
		Advocate:    acfg,
		Mediator:    mcfg,
		Concurrency: cfg.Concurrency.Advocates,
	}, nil
}

func applyStep(retries *int, temperature *float64, maxTokens *int, thinking *string, step model.StepConfig) {
	if step.MaxRetries > 0 {
		*retries = step.MaxRetries
	}
	*temperature = step.Temperature
	*maxTokens = step.MaxTokens
	*thinking = step.ThinkingToken
}

func sourceConfig(src model.SourceConfig) (strategy.SourceConfig, error) {
	opts, err := store.OptionsFromModel(src.Store)
	if err != nil {
		return strategy.SourceConfig{}, fmt.Errorf("source %q: %w", src.Name, err)
	}

	ev := evidence.DefaultConfig()
	if src.QueryTemplate != "" {
		ev.QueryTemplate = src.QueryTemplate
	}
	if src.TopK > 0 {
		ev.TopK = src.TopK
	}
	ev.ScoreFloor = src.ScoreFloor
	ev.MaxEvidences = src.MaxEvidences

	sc := strategy.SourceConfig{
		Name:         src.Name,
		StoreOptions: &opts,
		Evidence:     ev,
		Domain: prompts.Domain{
			Name:        src.Domain.Name,
			Description: src.Domain.Description,
			Keywords:    src.Domain.Keywords,
		},
		Authority:    src.Authority,
		SystemPrompt: src.SystemPrompt,
	}

	if src.Expansion.Enabled {
		ex := evidence.DefaultExpanderConfig()
		if src.Expansion.Count > 0 {
			ex.Count = src.Expansion.Count
		}
		if src.Expansion.MaxLength > 0 {
			ex.MaxLength = src.Expansion.MaxLength
		}
		if src.Expansion.Temperature > 0 {
			ex.Temperature = src.Expansion.Temperature
		}
		sc.Expansion = &ex
	}
	return sc, nil
}

// Labels returns the active label set
func (p *Pipeline) Labels() model.LabelSet {
	return p.labels
}

// Advocates returns the advocate names in configuration order
func (p *Pipeline) Advocates() []string {
	return p.strategy.Advocates()
}

// EvaluateClaim evaluates one claim and publishes the record to the sink, if
// any. A publish failure is logged and does not fail the claim.
func (p *Pipeline) EvaluateClaim(ctx context.Context, claim model.Claim) (*model.EvaluationRecord, error) {
	rec, err := p.strategy.EvaluateClaim(ctx, claim)
	if err != nil {
		return nil, err
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, rec); err != nil {
			p.logger.WithError(err).Warn("publish record failed", "id", rec.ID)
		}
	}
	return rec, nil
}

// NewEmbedder builds only the cached, rate-limited embedder, for indexing
// runs that never talk to a chat model. The returned func releases caches.
func NewEmbedder(cfg *model.Config, override llm.Embedder) (llm.Embedder, func() error, error) {
	p := &Pipeline{config: cfg}
	e, err := p.buildEmbedder(cfg, override, newLimiter(cfg.RateLimiting))
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return e, p.Close, nil
}

// NewIndexer opens the named source's store and builds an indexer for it.
// An empty name selects the first source. The caller closes the store.
func NewIndexer(ctx context.Context, cfg *model.Config, source string, embedder llm.Embedder, logger *logging.Logger) (*ingest.Indexer, store.Store, error) {
	var src *model.SourceConfig
	for i := range cfg.Sources {
		if cfg.Sources[i].Name == source || (source == "" && i == 0) {
			src = &cfg.Sources[i]
			break
		}
	}
	if src == nil {
		return nil, nil, &model.ConfigError{Field: "sources", Reason: fmt.Sprintf("no source named %q", source)}
	}

	opts, err := store.OptionsFromModel(src.Store)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(ctx, opts, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("open store for source %q: %w", src.Name, err)
	}

	chunker, err := ingest.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return ingest.NewIndexer(chunker, embedder, st, cfg.Index.BatchSize, logger.WithAdvocate(src.Name)), st, nil
}

// Close releases stores, caches and the sink
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Package evidence retrieves and filters the passages an advocate reasons over.
package evidence

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/prompts"
	"github.com/ppiankov/tribunal/internal/store"
)

// Config controls retrieval for one source
type Config struct {
	// QueryTemplate renders the store query; {{.Claim}} is the claim text
	QueryTemplate string

	// TopK is the number of passages requested from the store
	TopK int `validate:"gte=0"`

	// ScoreFloor drops scored passages below it
	ScoreFloor float64 `validate:"gte=0,lte=1"`

	// MaxEvidences caps the filtered list; zero keeps everything
	MaxEvidences int `validate:"gte=0"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		QueryTemplate: "{{.Claim}}",
		TopK:          5,
		ScoreFloor:    0.75,
	}
}

var validate = validator.New()

// Outcome is the result of one retrieval. Err is set when the store failed;
// Items is then empty and callers proceed as if nothing was found.
type Outcome struct {
	Items []model.EvidenceItem
	Query string
	Err   error
}

// Gatherer queries a document store and applies the score floor
type Gatherer struct {
	store  store.DocumentStore
	config Config
	query  *prompts.Template
	logger *logging.Logger
}

type queryData struct {
	Claim string
}

// NewGatherer validates cfg and compiles its query template
func NewGatherer(s store.DocumentStore, cfg Config, logger *logging.Logger) (*Gatherer, error) {
	if s == nil {
		return nil, &model.ConfigError{Field: "store", Reason: "document store is required"}
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, &model.ConfigError{Field: "evidence", Reason: "invalid retrieval settings", Err: err}
	}
	tmpl, err := prompts.ParseOr("query_template", cfg.QueryTemplate, prompts.Must("query_template", "{{.Claim}}"))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gatherer{store: s, config: cfg, query: tmpl, logger: logger}, nil
}

// Config returns the effective configuration
func (g *Gatherer) Config() Config {
	return g.config
}

// Gather retrieves evidence for claim, drops scored items below the floor
// and orders the rest by descending score.
func (g *Gatherer) Gather(ctx context.Context, claim model.Claim) Outcome {
	query, err := g.query.Render(queryData{Claim: string(claim)})
	if err != nil {
		g.logger.Warn("query template failed", "error", err)
		return Outcome{Err: err}
	}

	out := g.retrieve(ctx, query)
	if out.Err != nil {
		return out
	}

	out.Items = Filter(out.Items, g.config.ScoreFloor)
	if g.config.MaxEvidences > 0 && len(out.Items) > g.config.MaxEvidences {
		out.Items = out.Items[:g.config.MaxEvidences]
	}
	g.logger.Debug("gathered evidence", "query", query, "kept", len(out.Items))
	return out
}

// GatherQuery retrieves evidence for an already-built query, typically an
// expansion passage. The score floor does not apply and every item is
// marked Expanded.
func (g *Gatherer) GatherQuery(ctx context.Context, query string) Outcome {
	out := g.retrieve(ctx, query)
	if out.Err != nil {
		return out
	}
	for i := range out.Items {
		out.Items[i].Expanded = true
	}
	out.Items = order(out.Items)
	return out
}

func (g *Gatherer) retrieve(ctx context.Context, query string) Outcome {
	items, err := g.store.Retrieve(ctx, query, g.config.TopK)
	if err != nil {
		g.logger.Warn("evidence retrieval failed", "error", err)
		return Outcome{Query: query, Err: err}
	}
	return Outcome{Items: items, Query: query}
}

// Filter keeps unscored items and scored items at or above floor, ordered
// by descending score. Unscored items follow in their original order.
func Filter(items []model.EvidenceItem, floor float64) []model.EvidenceItem {
	kept := make([]model.EvidenceItem, 0, len(items))
	for _, it := range items {
		if it.Scored && it.Score < floor {
			continue
		}
		kept = append(kept, it)
	}
	return order(kept)
}

func order(items []model.EvidenceItem) []model.EvidenceItem {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Scored != b.Scored {
			return a.Scored
		}
		return a.Scored && a.Score > b.Score
	})
	return items
}

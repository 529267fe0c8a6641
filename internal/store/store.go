// Package store provides the document stores advocates retrieve evidence from.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/model"
)

// DocumentStore returns passages relevant to a query. A query with no
// matches yields an empty slice and a nil error.
type DocumentStore interface {
	Retrieve(ctx context.Context, query string, topK int) ([]model.EvidenceItem, error)
}

// Chunk is one indexed passage with its embedding
type Chunk struct {
	ID       string
	SourceID string
	Text     string
	Vector   []float32
}

// Writer accepts embedded chunks for indexing
type Writer interface {
	Upsert(ctx context.Context, chunks []Chunk) error
}

// Store is a backend that can be both searched and written
type Store interface {
	DocumentStore
	Writer
	Close() error
}

// Kind names a store backend
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindQdrant Kind = "qdrant"
)

// ParseKind maps a config string onto a backend kind
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSQLite, "":
		return KindSQLite, nil
	case KindQdrant:
		return KindQdrant, nil
	default:
		return "", &model.ConfigError{Field: "store.kind", Reason: fmt.Sprintf("unknown store kind %q", s)}
	}
}

// Options configures a store backend
type Options struct {
	Kind       Kind
	Path       string // sqlite database file
	Collection string // qdrant collection
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Timeout    time.Duration
}

// OptionsFromModel converts a source's store config into Options
func OptionsFromModel(cfg model.StoreConfig) (Options, error) {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Kind:       kind,
		Path:       cfg.Path,
		Collection: cfg.Collection,
		Host:       cfg.Host,
		Port:       cfg.Port,
		APIKey:     cfg.APIKey,
		UseTLS:     cfg.UseTLS,
	}, nil
}

// New opens the backend described by opts. The embedder turns queries and
// passages into vectors for both backends.
func New(ctx context.Context, opts Options, embedder llm.Embedder) (Store, error) {
	if embedder == nil {
		return nil, &model.ConfigError{Field: "embedding", Reason: "document stores require an embedder"}
	}

	switch opts.Kind {
	case KindSQLite, "":
		if opts.Path == "" {
			return nil, &model.ConfigError{Field: "store.path", Reason: "sqlite store requires a path"}
		}
		s, err := OpenSQLite(opts.Path, embedder)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindQdrant:
		if opts.Collection == "" {
			return nil, &model.ConfigError{Field: "store.collection", Reason: "qdrant store requires a collection"}
		}
		s, err := NewQdrantStore(QdrantConfig{
			Host:       opts.Host,
			Port:       opts.Port,
			APIKey:     opts.APIKey,
			UseTLS:     opts.UseTLS,
			Timeout:    opts.Timeout,
			Collection: opts.Collection,
		}, embedder)
		if err != nil {
			return nil, err
		}
		if err := s.HealthCheck(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, &model.ConfigError{Field: "store.kind", Reason: fmt.Sprintf("unknown store kind %q", opts.Kind)}
	}
}

// embedQuery returns the single vector for query
func embedQuery(ctx context.Context, embedder llm.Embedder, query string) ([]float32, error) {
	vecs, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed query: empty vector")
	}
	return vecs[0], nil
}

// cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// clampScore keeps similarity scores inside [0,1]
func clampScore(s float64) float64 {
	switch {
	case s < 0 || math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// rankTop sorts items by descending score and keeps the first k
func rankTop(items []model.EvidenceItem, k int) []model.EvidenceItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	return items
}

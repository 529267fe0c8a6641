package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ppiankov/tribunal/internal/ingest"
	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/model"
)

type mockProvider struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return &llm.ChatResponse{Content: m.reply}, nil
}

func (m *mockProvider) IsAvailable(_ context.Context) bool { return true }

type constEmbedder struct{}

func (constEmbedder) Name() string { return "const" }

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type recordingSink struct {
	mu      sync.Mutex
	records []*model.EvaluationRecord
	closed  bool
	err     error
}

func (s *recordingSink) Publish(_ context.Context, rec *model.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Sources[0].Store.Path = filepath.Join(t.TempDir(), "docs.db")
	cfg.Cache.DiskDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func seed(t *testing.T, cfg *model.Config) {
	t.Helper()
	ctx := context.Background()
	indexer, st, err := NewIndexer(ctx, cfg, "", constEmbedder{}, logging.Discard())
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	docs := []ingest.Document{{SourceID: "report.txt", Text: "Global mean sea level rose by about 20 cm since 1900."}}
	if _, err := indexer.IndexDocuments(ctx, docs); err != nil {
		t.Fatalf("IndexDocuments failed: %v", err)
	}
}

func TestPipeline_EvaluateClaim(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)

	provider := &mockProvider{reply: "The report says so. ((CORRECT))"}
	sink := &recordingSink{}
	p, err := New(context.Background(), cfg, Options{
		Logger:   logging.Discard(),
		Provider: provider,
		Embedder: constEmbedder{},
		Sink:     sink,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec, err := p.EvaluateClaim(context.Background(), "Sea levels have risen since 1900")
	if err != nil {
		t.Fatalf("EvaluateClaim failed: %v", err)
	}
	if rec.Final.Label != model.LabelCorrect {
		t.Errorf("final label = %s", rec.Final.Label)
	}
	if len(rec.Advocates) != 1 || len(rec.Advocates[0].Evidence) != 1 {
		t.Fatalf("unexpected advocates: %+v", rec.Advocates)
	}
	if rec.Advocates[0].Evidence[0].SourceID != "report.txt" {
		t.Errorf("evidence source = %s", rec.Advocates[0].Evidence[0].SourceID)
	}
	// one advocate call and one mediator call; retrieval found evidence so no expansion
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
	if len(sink.records) != 1 || sink.records[0].ID != rec.ID {
		t.Errorf("sink records = %+v", sink.records)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
}

func TestPipeline_PublishFailureDoesNotFailClaim(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false

	p, err := New(context.Background(), cfg, Options{
		Logger:   logging.Discard(),
		Provider: &mockProvider{reply: "((NOT_ENOUGH_INFORMATION))"},
		Embedder: constEmbedder{},
		Sink:     &recordingSink{err: errors.New("broker down")},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	rec, err := p.EvaluateClaim(context.Background(), "anything")
	if err != nil {
		t.Fatalf("EvaluateClaim failed: %v", err)
	}
	if rec.Advocates[0].Status != model.StatusInsufficientEvidence {
		t.Errorf("status = %s", rec.Advocates[0].Status)
	}
}

func TestLabelSet(t *testing.T) {
	set, err := LabelSet(model.LabelsConfig{})
	if err != nil || set.Len() != 3 {
		t.Fatalf("default label set: %v, %d", err, set.Len())
	}

	set, err = LabelSet(model.LabelsConfig{
		Options: []model.LabelOption{{Label: "supported"}, {Label: "refuted"}, {Label: "unknown"}},
		Insufficient: "unknown",
	})
	if err != nil {
		t.Fatalf("custom label set: %v", err)
	}
	if set.Insufficient() != "UNKNOWN" {
		t.Errorf("insufficient = %s", set.Insufficient())
	}

	_, err = LabelSet(model.LabelsConfig{Options: []model.LabelOption{{Label: "a"}, {Label: "b"}}})
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError when the insufficient label is missing, got %v", err)
	}
}

func TestStrategyConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Advocate.Parser = "xml"
	cfg.Advocate.ThinkingToken = "think"
	cfg.Sources = append(cfg.Sources, model.SourceConfig{
		Name:      "wiki",
		Store:     model.StoreConfig{Kind: "qdrant", Collection: "wiki"},
		Authority: "secondary",
		Domain:    model.DomainConfig{Name: "climate science"},
	})

	scfg, err := StrategyConfig(cfg, model.DefaultLabelSet())
	if err != nil {
		t.Fatalf("StrategyConfig failed: %v", err)
	}
	if len(scfg.Sources) != 2 {
		t.Fatalf("sources = %d", len(scfg.Sources))
	}
	if scfg.Sources[0].Expansion == nil || scfg.Sources[0].Expansion.Count != 1 {
		t.Errorf("expected expansion on default source, got %+v", scfg.Sources[0].Expansion)
	}
	if scfg.Sources[1].Expansion != nil {
		t.Error("expected no expansion on second source")
	}
	if scfg.Sources[1].StoreOptions.Collection != "wiki" || scfg.Sources[1].Domain.Name != "climate science" {
		t.Errorf("second source = %+v", scfg.Sources[1])
	}
	if scfg.Advocate.ThinkingToken != "think" || scfg.Advocate.MaxRetries != 3 {
		t.Errorf("advocate config = %+v", scfg.Advocate)
	}
	if scfg.Concurrency != cfg.Concurrency.Advocates {
		t.Errorf("concurrency = %d", scfg.Concurrency)
	}

	cfg.Mediator.Parser = "yaml"
	if _, err := StrategyConfig(cfg, model.DefaultLabelSet()); err == nil {
		t.Error("expected error for unknown parser")
	}
}

func TestNewIndexer_UnknownSource(t *testing.T) {
	_, _, err := NewIndexer(context.Background(), testConfig(t), "missing", constEmbedder{}, logging.Discard())
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestNewEmbedder_CachesVectors(t *testing.T) {
	cfg := testConfig(t)
	counting := &countingEmbedder{}
	e, closeFn, err := NewEmbedder(cfg, counting)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = closeFn() }()

	for i := 0; i < 2; i++ {
		if _, err := e.Embed(context.Background(), []string{"same text"}); err != nil {
			t.Fatal(err)
		}
	}
	if counting.calls != 1 {
		t.Errorf("inner embedder calls = %d, want 1", counting.calls)
	}
}

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return constEmbedder{}.Embed(context.Background(), texts)
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *model.Config)
	}{
		{"unknown advocate parser", func(cfg *model.Config) { cfg.Advocate.Parser = "yaml" }},
		{"unknown mediator parser", func(cfg *model.Config) { cfg.Mediator.Parser = "toml" }},
		{"single label", func(cfg *model.Config) {
			cfg.Labels.Options = cfg.Labels.Options[:1]
			cfg.Labels.Insufficient = cfg.Labels.Options[0].Label
		}},
		// fails after the strategy has opened its store
		{"kafka without topic", func(cfg *model.Config) {
			cfg.Kafka.Brokers = []string{"localhost:9092"}
			cfg.Kafka.Topic = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			p, err := New(context.Background(), cfg, Options{
				Logger:   logging.Discard(),
				Provider: &mockProvider{reply: "((correct))"},
				Embedder: constEmbedder{},
			})
			if p != nil {
				t.Error("expected nil pipeline on error")
			}
			var cfgErr *model.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *model.ConfigError, got %v", err)
			}
		})
	}
}

package strategy

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/tribunal/internal/evidence"
	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/mediator"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/store"
)

const claim = model.Claim("Arctic sea ice extent has declined since 1979.")

type mockStore struct {
	items []model.EvidenceItem
	err   error
}

func (m *mockStore) Retrieve(_ context.Context, _ string, _ int) ([]model.EvidenceItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.EvidenceItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func withEvidence(text string) *mockStore {
	return &mockStore{items: []model.EvidenceItem{{Text: text, SourceID: text, Score: 0.9, Scored: true}}}
}

var sourcePattern = regexp.MustCompile(`from the "([^"]+)" collection`)

// routingProvider answers advocate requests by source name and mediator
// requests with a fixed reply
type routingProvider struct {
	mu       sync.Mutex
	advocate map[string]string
	fail     map[string]error
	delay    map[string]time.Duration
	mediator string
	prompts  []string // mediator user prompts

	inflight      atomic.Int32
	maxInflight   atomic.Int32
	advocateCalls atomic.Int32
}

func (p *routingProvider) Name() string                       { return "routing" }
func (p *routingProvider) IsAvailable(_ context.Context) bool { return true }

func (p *routingProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		cur := p.maxInflight.Load()
		if n <= cur || p.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}

	system := req.Messages[0].Content
	if strings.HasPrefix(system, "You are the mediator") {
		p.mu.Lock()
		p.prompts = append(p.prompts, req.Messages[1].Content)
		p.mu.Unlock()
		return &llm.ChatResponse{Content: p.mediator}, nil
	}

	m := sourcePattern.FindStringSubmatch(system)
	if m == nil {
		return nil, errors.New("unexpected request")
	}
	source := m[1]
	p.advocateCalls.Add(1)
	if d := p.delay[source]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.fail[source]; err != nil {
		return nil, err
	}
	return &llm.ChatResponse{Content: p.advocate[source]}, nil
}

func TestEvaluateClaim_OrderAndAudit(t *testing.T) {
	p := &routingProvider{
		advocate: map[string]string{"B": "y ((correct))", "C": "z ((correct))"},
		delay:    map[string]time.Duration{"B": 30 * time.Millisecond},
		mediator: "Two advocates cite concrete evidence. ((correct))",
	}
	cfg := Config{
		Sources: []SourceConfig{
			{Name: "A", Store: &mockStore{}, Evidence: evidence.DefaultConfig()},
			{Name: "B", Store: withEvidence("b-doc"), Evidence: evidence.DefaultConfig()},
			{Name: "C", Store: withEvidence("c-doc"), Evidence: evidence.DefaultConfig()},
		},
		Concurrency: 3,
	}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	rec, err := s.EvaluateClaim(context.Background(), claim)
	if err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}

	wantLabels := []string{model.LabelNotEnoughInformation, model.LabelCorrect, model.LabelCorrect}
	wantReasons := []string{model.NoEvidenceReasoning, "y", "z"}
	gotLabels := rec.PerAdvocateVerdicts()
	gotReasons := rec.PerAdvocateReasonings()
	for i := range wantLabels {
		if gotLabels[i] != wantLabels[i] || gotReasons[i] != wantReasons[i] {
			t.Errorf("advocate %d = (%s, %q), want (%s, %q)", i, gotLabels[i], gotReasons[i], wantLabels[i], wantReasons[i])
		}
	}
	if rec.Advocates[0].Name != "A" || rec.Advocates[2].Name != "C" {
		t.Errorf("advocates out of configuration order: %v", s.Advocates())
	}
	ev := rec.PerAdvocateEvidence()
	if len(ev[0]) != 0 || len(ev[1]) != 1 || ev[1][0].Text != "b-doc" {
		t.Errorf("unexpected evidence: %+v", ev)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("expected exactly one mediator call, got %d", len(p.prompts))
	}
	want := "<verdict>NOT_ENOUGH_INFORMATION</verdict><reasoning>NO EVIDENCE FOUND</reasoning>\n" +
		"<verdict>CORRECT</verdict><reasoning>y</reasoning>\n" +
		"<verdict>CORRECT</verdict><reasoning>z</reasoning>"
	if !strings.Contains(p.prompts[0], want) {
		t.Errorf("mediator input not in configuration order:\n%s", p.prompts[0])
	}

	if rec.Final.Label != model.LabelCorrect || rec.MediatorAttempts != 1 {
		t.Errorf("unexpected final verdict: %+v (attempts %d)", rec.Final, rec.MediatorAttempts)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("record id is not a uuid: %q", rec.ID)
	}
	if rec.StartedAt.IsZero() || rec.Duration <= 0 {
		t.Errorf("timing not recorded: %v %v", rec.StartedAt, rec.Duration)
	}
	if rec.Claim != claim {
		t.Errorf("claim changed: %q", rec.Claim)
	}
}

func TestEvaluateClaim_AdvocateFailureFailsClaim(t *testing.T) {
	p := &routingProvider{
		advocate: map[string]string{"A": "((correct))"},
		fail:     map[string]error{"B": errors.New("429 rate limited")},
		mediator: "((correct))",
	}
	cfg := Config{Sources: []SourceConfig{
		{Name: "A", Store: withEvidence("a")},
		{Name: "B", Store: withEvidence("b")},
	}}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := s.EvaluateClaim(context.Background(), claim)
	if rec != nil {
		t.Error("expected no record")
	}
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) || stageErr.Name != "B" {
		t.Fatalf("expected StageError for B, got %v", err)
	}
	if len(p.prompts) != 0 {
		t.Error("mediator must not run after an advocate failure")
	}
}

func TestEvaluateClaim_ParseErrorDoesNotFailClaim(t *testing.T) {
	p := &routingProvider{
		advocate: map[string]string{"A": "no verdict here", "B": "((incorrect))"},
		mediator: "((incorrect))",
	}
	cfg := Config{Sources: []SourceConfig{
		{Name: "A", Store: withEvidence("a")},
		{Name: "B", Store: withEvidence("b")},
	}}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := s.EvaluateClaim(context.Background(), claim)
	if err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}
	if rec.Advocates[0].Verdict.Label != model.ParseErrorLabel || rec.Advocates[0].Attempts != 3 {
		t.Errorf("unexpected first advocate: %+v", rec.Advocates[0])
	}
	if !strings.Contains(p.prompts[0], "<verdict>ERROR_PARSING_RESPONSE</verdict><reasoning>No reasoning available</reasoning>") {
		t.Errorf("parse error not forwarded to mediator:\n%s", p.prompts[0])
	}
}

func TestEvaluateClaim_StoreFailureIsEmptyEvidence(t *testing.T) {
	p := &routingProvider{mediator: "((not_enough_information))"}
	cfg := Config{Sources: []SourceConfig{
		{Name: "A", Store: &mockStore{err: errors.New("qdrant unavailable")}},
	}}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := s.EvaluateClaim(context.Background(), claim)
	if err != nil {
		t.Fatalf("store failures must not fail the claim: %v", err)
	}
	if rec.Advocates[0].Status != model.StatusInsufficientEvidence {
		t.Errorf("status = %s", rec.Advocates[0].Status)
	}
}

func TestEvaluateClaim_SequentialBaseline(t *testing.T) {
	p := &routingProvider{
		advocate: map[string]string{"A": "((correct))", "B": "((correct))", "C": "((correct))"},
		delay:    map[string]time.Duration{"A": 5 * time.Millisecond, "B": 5 * time.Millisecond, "C": 5 * time.Millisecond},
		mediator: "((correct))",
	}
	cfg := Config{
		Sources: []SourceConfig{
			{Name: "A", Store: withEvidence("a")},
			{Name: "B", Store: withEvidence("b")},
			{Name: "C", Store: withEvidence("c")},
		},
		Concurrency: 1,
	}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.EvaluateClaim(context.Background(), claim); err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}
	if got := p.maxInflight.Load(); got != 1 {
		t.Errorf("expected sequential calls, saw %d in flight", got)
	}
}

func TestEvaluateClaim_StoreOptions(t *testing.T) {
	p := &routingProvider{mediator: "((not_enough_information))"}
	cfg := Config{Sources: []SourceConfig{{
		Name:         "local",
		StoreOptions: &store.Options{Kind: store.KindSQLite, Path: filepath.Join(t.TempDir(), "local.db")},
	}}}
	s, err := New(context.Background(), cfg, Deps{Provider: p, Embedder: unitEmbedder{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	rec, err := s.EvaluateClaim(context.Background(), claim)
	if err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}
	if rec.Advocates[0].Verdict.Reasoning != model.NoEvidenceReasoning {
		t.Errorf("empty sqlite store should yield no evidence, got %+v", rec.Advocates[0])
	}
}

type unitEmbedder struct{}

func (unitEmbedder) Name() string { return "unit" }
func (unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestNew_ConfigErrors(t *testing.T) {
	p := &routingProvider{}
	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"no sources", Config{}, Deps{Provider: p}},
		{"duplicate names", Config{Sources: []SourceConfig{
			{Name: "A", Store: &mockStore{}},
			{Name: "A", Store: &mockStore{}},
		}}, Deps{Provider: p}},
		{"no store", Config{Sources: []SourceConfig{{Name: "A"}}}, Deps{Provider: p}},
		{"empty name", Config{Sources: []SourceConfig{{Store: &mockStore{}}}}, Deps{Provider: p}},
		{"no provider", Config{Sources: []SourceConfig{{Name: "A", Store: &mockStore{}}}}, Deps{}},
		{"negative concurrency", Config{Sources: []SourceConfig{{Name: "A", Store: &mockStore{}}}, Concurrency: -1}, Deps{Provider: p}},
		{"store options without embedder", Config{Sources: []SourceConfig{
			{Name: "A", StoreOptions: &store.Options{Kind: store.KindSQLite, Path: "x.db"}},
		}}, Deps{Provider: p}},
		{"expansion temperature out of range", Config{Sources: []SourceConfig{
			{Name: "A", Store: &mockStore{}, Expansion: &evidence.ExpanderConfig{Count: 1, MaxLength: 10, Temperature: 5}},
		}}, Deps{Provider: p}},
		{"bad expansion after an opened store", Config{Sources: []SourceConfig{
			{Name: "A", StoreOptions: &store.Options{Kind: store.KindSQLite, Path: filepath.Join(t.TempDir(), "a.db")}},
			{Name: "B", Store: &mockStore{}, Expansion: &evidence.ExpanderConfig{Count: -1}},
		}}, Deps{Provider: p, Embedder: unitEmbedder{}}},
		{"invalid mediator settings", Config{
			Sources:  []SourceConfig{{Name: "A", Store: &mockStore{}}},
			Mediator: mediator.Config{MaxRetries: -1},
		}, Deps{Provider: p}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), tt.cfg, tt.deps)
			if s != nil {
				t.Error("expected nil strategy on error")
			}
			var cfgErr *model.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestEvaluateClaim_MediatorReceivesOrderedTriple(t *testing.T) {
	p := &routingProvider{
		advocate: map[string]string{
			"ipcc":  "Satellite altimetry in AR6 shows sustained ice loss since 1979. ((correct))",
			"nsidc": "September minimum extent fell about 13% per decade. ((correct))",
			"blog":  "Antarctic extent grew between 2012 and 2014. ((incorrect))",
		},
		// reverse completion order
		delay:    map[string]time.Duration{"ipcc": 40 * time.Millisecond, "nsidc": 20 * time.Millisecond},
		mediator: "Arctic records outweigh the Antarctic counterexample. ((correct))",
	}
	cfg := Config{
		Sources: []SourceConfig{
			{Name: "ipcc", Store: withEvidence("ipcc-ar6")},
			{Name: "nsidc", Store: withEvidence("nsidc-index")},
			{Name: "blog", Store: withEvidence("blog-post")},
		},
		Concurrency: 3,
	}
	s, err := New(context.Background(), cfg, Deps{Provider: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.EvaluateClaim(context.Background(), claim); err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("expected one mediator call, got %d", len(p.prompts))
	}
	want := "<verdict>CORRECT</verdict><reasoning>Satellite altimetry in AR6 shows sustained ice loss since 1979.</reasoning>\n" +
		"<verdict>CORRECT</verdict><reasoning>September minimum extent fell about 13% per decade.</reasoning>\n" +
		"<verdict>INCORRECT</verdict><reasoning>Antarctic extent grew between 2012 and 2014.</reasoning>"
	if !strings.Contains(p.prompts[0], want) {
		t.Errorf("mediator input is not the ordered triple:\n%s", p.prompts[0])
	}
	if n := strings.Count(p.prompts[0], "<verdict>"); n != 3 {
		t.Errorf("mediator saw %d verdicts, want 3", n)
	}
}

func TestEvaluateClaim_NoEvidenceAfterFailedExpansion(t *testing.T) {
	const warming = model.Claim("Global temperatures have not risen in the past decade")

	p := &routingProvider{mediator: "Nothing to weigh. ((not_enough_information))"}
	hyde := &countingProvider{reply: "I cannot write that passage."}
	docs := &mockStore{items: []model.EvidenceItem{{Text: "weak match", Score: 0.41, Scored: true}}}

	cfg := Config{Sources: []SourceConfig{{
		Name:      "climate",
		Store:     docs,
		Evidence:  evidence.DefaultConfig(),
		Expansion: &evidence.ExpanderConfig{Count: 2},
	}}}
	s, err := New(context.Background(), cfg, Deps{Provider: p, ExpansionProvider: hyde})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := s.EvaluateClaim(context.Background(), warming)
	if err != nil {
		t.Fatalf("EvaluateClaim: %v", err)
	}

	got := rec.Advocates[0].Verdict
	if got.Label != model.LabelNotEnoughInformation || got.Reasoning != model.NoEvidenceReasoning {
		t.Errorf("advocate verdict = %+v", got)
	}
	if n := p.advocateCalls.Load(); n != 0 {
		t.Errorf("advocate model called %d times, want 0", n)
	}
	if n := hyde.calls.Load(); n != 2 {
		t.Errorf("expansion attempts = %d, want 2", n)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("expected one mediator call, got %d", len(p.prompts))
	}
	pair := "<verdict>NOT_ENOUGH_INFORMATION</verdict><reasoning>NO EVIDENCE FOUND</reasoning>"
	if !strings.Contains(p.prompts[0], pair) || strings.Count(p.prompts[0], "<verdict>") != 1 {
		t.Errorf("mediator input is not the single no-evidence pair:\n%s", p.prompts[0])
	}
	if rec.Final.Label != model.LabelNotEnoughInformation {
		t.Errorf("final verdict = %+v", rec.Final)
	}
}

// countingProvider returns a fixed reply and counts calls
type countingProvider struct {
	reply string
	calls atomic.Int32
}

func (c *countingProvider) Name() string                       { return "counting" }
func (c *countingProvider) IsAvailable(_ context.Context) bool { return true }
func (c *countingProvider) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	c.calls.Add(1)
	return &llm.ChatResponse{Content: c.reply}, nil
}

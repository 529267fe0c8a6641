package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/tribunal/internal/llm"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("openai") {
			t.Fatalf("call %d denied with rate limiting disabled", i)
		}
	}
}

func TestLimiter_PerKey(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}
	if limiter.Allow("openai") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}
	if !limiter.Allow("anthropic") {
		t.Errorf("expected allow for other provider")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetRate("ollama", 0.1, 1)

	if !limiter.Allow("ollama") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("ollama") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("openai") {
		t.Errorf("other key should pass")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	_ = limiter.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "slow"); err == nil {
		t.Error("expected Wait to fail when the context cannot outlast the limiter")
	}
}

type stubProvider struct {
	calls int
}

func (p *stubProvider) Name() string                         { return "stub" }
func (p *stubProvider) IsAvailable(ctx context.Context) bool { return true }
func (p *stubProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.calls++
	return &llm.ChatResponse{Content: "ok"}, nil
}

func TestLimitedProvider(t *testing.T) {
	inner := &stubProvider{}
	limiter := NewLimiter(0.01, 1)
	p := NewLimitedProvider(inner, limiter)

	if p.Name() != "stub" {
		t.Errorf("Name() = %s, want stub", p.Name())
	}

	if _, err := p.Chat(context.Background(), llm.ChatRequest{}); err != nil {
		t.Fatalf("first Chat failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Chat(ctx, llm.ChatRequest{}); err == nil {
		t.Error("expected second Chat to be throttled")
	}
	if inner.calls != 1 {
		t.Errorf("expected throttled call not to reach provider, got %d calls", inner.calls)
	}

	if NewLimitedProvider(inner, nil) != llm.Provider(inner) {
		t.Error("nil limiter should return the provider unchanged")
	}
}

package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ppiankov/tribunal/internal/llm"
)

// Limiter throttles calls per key (typically a provider name).
// A zero rate disables limiting.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a call for key is allowed or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if a call is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// SetRate sets a custom rate limit for a specific key
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// LimitedProvider waits on a Limiter before every chat call
type LimitedProvider struct {
	llm.Provider
	limiter *Limiter
}

// NewLimitedProvider wraps p; a nil limiter returns p unchanged
func NewLimitedProvider(p llm.Provider, limiter *Limiter) llm.Provider {
	if limiter == nil {
		return p
	}
	return &LimitedProvider{Provider: p, limiter: limiter}
}

// Chat waits for clearance under the provider's name, then delegates
func (p *LimitedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := p.limiter.Wait(ctx, p.Provider.Name()); err != nil {
		return nil, err
	}
	return p.Provider.Chat(ctx, req)
}

// LimitedEmbedder waits on a Limiter before every embedding call
type LimitedEmbedder struct {
	llm.Embedder
	limiter *Limiter
}

// NewLimitedEmbedder wraps e; a nil limiter returns e unchanged
func NewLimitedEmbedder(e llm.Embedder, limiter *Limiter) llm.Embedder {
	if limiter == nil {
		return e
	}
	return &LimitedEmbedder{Embedder: e, limiter: limiter}
}

// Embed waits for clearance under the embedder's name, then delegates
func (e *LimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx, e.Embedder.Name()); err != nil {
		return nil, err
	}
	return e.Embedder.Embed(ctx, texts)
}

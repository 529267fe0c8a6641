package llm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/tribunal/internal/cache"
)

// Embedder turns texts into dense vectors for similarity search
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  int // seconds

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	config EmbeddingConfig
}

// NewOpenAIEmbedder creates an embedder backed by OpenAI
func NewOpenAIEmbedder(config EmbeddingConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}

	proxyCfg := Config{HTTPProxy: config.HTTPProxy, HTTPSProxy: config.HTTPSProxy, NoProxy: config.NoProxy}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(openAIClientConfig(config.APIKey, config.BaseURL, proxyCfg)),
		config: config,
	}, nil
}

// Name returns the embedder name
func (e *OpenAIEmbedder) Name() string {
	return "openai/" + e.config.Model
}

// Embed returns one vector per input text, in input order
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", asAPIError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// OllamaEmbedder calls Ollama's /api/embed endpoint
type OllamaEmbedder struct {
	api   *jsonAPI
	model string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder backed by a local Ollama daemon
func NewOllamaEmbedder(config EmbeddingConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., nomic-embed-text)")
	}
	return &OllamaEmbedder{
		api:   newOllamaAPI(config.BaseURL, config.Timeout, 60, 1, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		model: config.Model,
	}, nil
}

// Name returns the embedder name
func (e *OllamaEmbedder) Name() string {
	return "ollama/" + e.model
}

// Embed returns one vector per input text, in input order
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := e.api.post(ctx, "/api/embed", ollamaEmbedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// CachedEmbedder memoizes vectors per (embedder, text) in a cache.Cache.
// Only misses are sent to the wrapped embedder.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with c; a nil cache returns inner unchanged
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) Embedder {
	if c == nil {
		return inner
	}
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped embedder's name
func (e *CachedEmbedder) Name() string {
	return e.inner.Name()
}

// Embed serves cached vectors and embeds the rest in one call
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if raw, ok := e.cache.Get(ctx, e.key(text)); ok {
			if vec, ok := DecodeVector(raw); ok {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = vecs[j]
		// A failed cache write only costs a future recomputation
		_ = e.cache.Set(ctx, e.key(missTexts[j]), EncodeVector(vecs[j]), e.ttl)
	}
	return out, nil
}

func (e *CachedEmbedder) key(text string) string {
	return cache.Key("embed", e.inner.Name(), text)
}

// EncodeVector packs a vector as little-endian float32 bytes
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector
func DecodeVector(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}

package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, &model.ConfigError{Field: "llm.provider", Reason: "no language model provider configured"}

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// NewEmbedder creates an embedding backend based on configuration
func NewEmbedder(config EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIEmbedder(config)
	case "ollama":
		return NewOllamaEmbedder(config)
	case "":
		return nil, &model.ConfigError{Field: "embedding.provider", Reason: "no embedding provider configured"}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// EmbeddingConfigFromModel converts model.EmbeddingConfig to llm.EmbeddingConfig
func EmbeddingConfigFromModel(m model.EmbeddingConfig) EmbeddingConfig {
	return EmbeddingConfig{
		Provider: m.Provider,
		Model:    m.Model,
		APIKey:   m.APIKey,
		BaseURL:  m.BaseURL,
		Timeout:  m.Timeout,
	}
}

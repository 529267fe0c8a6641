package llm

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/ppiankov/tribunal/internal/model"
)

// Provider is a stateless chat-completion backend. Every call is
// self-contained: no conversation memory is kept between calls.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Chat sends an ordered list of messages and returns the model's reply
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Role of a chat message author
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn
type Message struct {
	Role    Role
	Content string
}

// ChatRequest contains the input for one completion
type ChatRequest struct {
	Messages []Message

	// Model overrides the provider's configured model
	Model string

	// Temperature for sampling; zero leaves the provider default
	Temperature float64

	// MaxTokens limits the response length; zero uses the provider config
	MaxTokens int
}

// ChatResponse contains the model's reply
type ChatResponse struct {
	// Content is the raw reply text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Retries is the number of extra attempts after a rate-limit or server
	// error (HTTP providers only)
	Retries int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Timeout:   60,
		MaxTokens: 1024,
		Retries:   2,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:  modelConfig.Provider,
		Model:     modelConfig.Model,
		APIKey:    modelConfig.APIKey,
		BaseURL:   modelConfig.BaseURL,
		Timeout:   modelConfig.Timeout,
		MaxTokens: modelConfig.MaxTokens,
		Retries:   modelConfig.Retries,
	}
}

// providerEnv lists the environment variables that feed provider configuration
type providerEnv struct {
	Provider      string `envconfig:"TRIBUNAL_LLM_PROVIDER"`
	Model         string `envconfig:"TRIBUNAL_LLM_MODEL"`
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY"`
	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL"`
	HTTPProxy     string `envconfig:"HTTP_PROXY"`
	HTTPSProxy    string `envconfig:"HTTPS_PROXY"`
	NoProxy       string `envconfig:"NO_PROXY"`
}

// LoadConfigFromEnv overlays environment variables onto base. Explicit
// values in base win over the environment for provider and model; API keys
// and endpoints are filled from the environment only when base leaves them empty.
func LoadConfigFromEnv(base Config) (Config, error) {
	var env providerEnv
	if err := envconfig.Process("", &env); err != nil {
		return base, fmt.Errorf("read environment: %w", err)
	}

	cfg := base
	if cfg.Provider == "" {
		cfg.Provider = env.Provider
	}
	if cfg.Model == "" {
		cfg.Model = env.Model
	}

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = env.OpenAIKey
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = env.OpenAIBaseURL
		}
	case "anthropic", "claude":
		if cfg.APIKey == "" {
			cfg.APIKey = env.AnthropicKey
		}
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = env.OllamaBaseURL
		}
	}

	if cfg.HTTPProxy == "" {
		cfg.HTTPProxy = env.HTTPProxy
	}
	if cfg.HTTPSProxy == "" {
		cfg.HTTPSProxy = env.HTTPSProxy
	}
	if cfg.NoProxy == "" {
		cfg.NoProxy = env.NoProxy
	}

	return cfg, nil
}

// resolveMaxTokens picks the request value, then the config value, then a default
func resolveMaxTokens(req ChatRequest, config Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if config.MaxTokens > 0 {
		return config.MaxTokens
	}
	return 1024
}

// splitSystem separates system messages from the conversation turns for
// APIs that take the system prompt as a dedicated field
func splitSystem(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

// LoadEmbeddingConfigFromEnv fills missing embedding credentials from the environment
func LoadEmbeddingConfigFromEnv(base EmbeddingConfig) (EmbeddingConfig, error) {
	var env providerEnv
	if err := envconfig.Process("", &env); err != nil {
		return base, fmt.Errorf("read environment: %w", err)
	}

	cfg := base
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = env.OpenAIKey
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = env.OpenAIBaseURL
		}
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = env.OllamaBaseURL
		}
	}
	if cfg.HTTPProxy == "" {
		cfg.HTTPProxy = env.HTTPProxy
	}
	if cfg.HTTPSProxy == "" {
		cfg.HTTPSProxy = env.HTTPSProxy
	}
	if cfg.NoProxy == "" {
		cfg.NoProxy = env.NoProxy
	}
	return cfg, nil
}

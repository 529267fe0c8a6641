package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/tribunal/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models
// and OpenAI-compatible gateways
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(openAIClientConfig(config.APIKey, config.BaseURL, config)),
		config: config,
	}, nil
}

func openAIClientConfig(apiKey, baseURL string, config Config) openai.ClientConfig {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		clientConfig.HTTPClient = util.NewHTTPClient(0, 0, config.HTTPProxy, config.HTTPSProxy, config.NoProxy)
	}
	return clientConfig
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable lists models to confirm the key is accepted
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Chat sends the messages to OpenAI's Chat Completions API
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   resolveMaxTokens(req, p.config),
		Temperature: float32(req.Temperature),
	}

	var resp openai.ChatCompletionResponse
	err := retryTransient(ctxWithTimeout, p.config.Retries, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
		return asAPIError(callErr)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices for model %s", model)
	}

	return &ChatResponse{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func openAIRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// asAPIError maps go-openai's error types onto APIError so retries and
// callers see one shape across providers
func asAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		typ := apiErr.Type
		if typ == "" {
			if code, ok := apiErr.Code.(string); ok {
				typ = code
			}
		}
		return &APIError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Type: typ, Message: apiErr.Message, retryAfter: -1}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), retryAfter: -1}
	}
	return fmt.Errorf("openai request: %w", err)
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/tribunal/internal/util"
)

const ollamaBaseURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama daemon
type OllamaProvider struct {
	api    *jsonAPI
	config Config
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	Done            bool          `json:"done"`
}

func decodeOllamaError(body []byte) (string, string) {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return "", ""
	}
	return "", e.Error
}

// newOllamaAPI builds the client shared by chat and embeddings.
// defaultTimeout applies when timeout is zero.
func newOllamaAPI(baseURL string, timeout, defaultTimeout, retries int, httpProxy, httpsProxy, noProxy string) *jsonAPI {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	client := util.NewHTTPClient(timeout, defaultTimeout, httpProxy, httpsProxy, noProxy)
	return newJSONAPI("ollama", baseURL, client, retries, decodeOllamaError)
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	return &OllamaProvider{
		api:    newOllamaAPI(config.BaseURL, config.Timeout, 120, config.Retries, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the daemon answers on /api/tags
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.api.get(ctx, "/api/tags", nil) == nil
}

// Chat sends the messages to /api/chat without streaming
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5:14b)")
	}

	apiReq := ollamaChatRequest{
		Model:    model,
		Messages: make([]ollamaMessage, 0, len(req.Messages)),
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  resolveMaxTokens(req, p.config),
		},
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp ollamaChatResponse
	if err := p.api.post(ctx, "/api/chat", apiReq, &resp); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Message.Content)

	// Some models report no counts; fall back to ~4 characters per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		chars := len(content)
		for _, m := range req.Messages {
			chars += len(m.Content)
		}
		tokensUsed = chars / 4
	}

	return &ChatResponse{
		Content:    content,
		Model:      resp.Model,
		TokensUsed: tokensUsed,
	}, nil
}

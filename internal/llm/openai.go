package llm

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
)

// DeepSeek exposes an OpenAI-compatible chat completion API
const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"
)

// ErrNoChoices is returned when a completion carries no choices
var ErrNoChoices = eris.New("no choices in completion response")

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs.
// It serves both "openai" and "deepseek".
type OpenAIProvider struct {
	name   string
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a provider talking to api.openai.com (or BaseURL)
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	return newOpenAICompatible("openai", config, "")
}

// NewDeepSeekProvider creates a provider talking to the DeepSeek API (or BaseURL)
func NewDeepSeekProvider(config Config) (*OpenAIProvider, error) {
	return newOpenAICompatible("deepseek", config, DeepSeekBaseURL)
}

func newOpenAICompatible(name string, config Config, defaultBaseURL string) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, eris.Wrapf(ErrMissingAPIKey, "%s provider", name)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	switch {
	case config.BaseURL != "":
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	case defaultBaseURL != "":
		clientConfig.BaseURL = defaultBaseURL
	}
	clientConfig.HTTPClient = newHTTPClient(config, 0)

	return &OpenAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Chat sends a chat completion request
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		if p.name == "deepseek" {
			model = DeepSeekModel
		} else {
			model = openai.GPT4oMini
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1000
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: wireTemperature(req.Temperature),
		Stream:      false,
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, p.normalizeError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrNoChoices}
	}

	return &ChatResponse{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (p *OpenAIProvider) normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   p.name,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   p.name,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &ProviderError{Provider: p.name, Err: err}
}

// wireTemperature maps a requested temperature onto go-openai's field, which
// drops zero values from the payload.
func wireTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

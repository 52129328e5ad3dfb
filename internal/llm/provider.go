package llm

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider defines the interface for LLM chat-completion backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Chat sends one non-streaming chat completion request
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Message is one chat message
type Message struct {
	Role    string
	Content string
}

// ChatRequest contains the input for a chat completion
type ChatRequest struct {
	Messages []Message

	// Model overrides the configured model (provider-specific)
	Model string

	// MaxTokens limits the response length; zero uses the configured value
	MaxTokens int

	// Temperature is passed through as-is. Zero means deterministic, not "default".
	Temperature float64
}

// ChatResponse contains the provider's raw output
type ChatResponse struct {
	// Content is the assistant message text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "deepseek", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for DeepSeek/OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for classification requests
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "deepseek",
		Model:       DeepSeekModel,
		Timeout:     30,
		MaxTokens:   1000,
		Temperature: 0.2,
	}
}

// ErrMissingAPIKey is returned when a provider that needs a credential has none
var ErrMissingAPIKey = eris.New("API key is required")

// ProviderError is the normalized shape of every provider-side failure
type ProviderError struct {
	Provider   string
	StatusCode int    // HTTP status, zero when the request never got a response
	Message    string // Provider-supplied error text, if any
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error (%d)", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s request failed", e.Provider)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

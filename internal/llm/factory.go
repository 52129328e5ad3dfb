package llm

import (
	"strings"

	"github.com/rotisserie/eris"
)

// NewProvider creates a new LLM provider based on configuration.
// Key-requiring providers return an error wrapping ErrMissingAPIKey when the key is empty.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "deepseek", "":
		return NewDeepSeekProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, eris.Errorf("unknown LLM provider: %s (supported: deepseek, openai, anthropic, ollama)", config.Provider)
	}
}

// DisplayName returns the label used in user-facing messages
func DisplayName(provider string) string {
	switch strings.ToLower(provider) {
	case "deepseek", "":
		return "DeepSeek"
	case "openai":
		return "OpenAI"
	case "anthropic", "claude":
		return "Anthropic"
	case "ollama":
		return "Ollama"
	default:
		return provider
	}
}

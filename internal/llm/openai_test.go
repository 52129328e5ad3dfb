package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func newTestDeepSeek(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewDeepSeekProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestDeepSeekProvider_Chat_Success(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["model"] != DeepSeekModel {
			t.Errorf("Expected model %s, got %v", DeepSeekModel, body["model"])
		}
		if body["max_tokens"] != float64(1000) {
			t.Errorf("Expected max_tokens 1000, got %v", body["max_tokens"])
		}
		if temp, ok := body["temperature"].(float64); !ok || temp < 0.19 || temp > 0.21 {
			t.Errorf("Expected temperature 0.2, got %v", body["temperature"])
		}
		if stream, ok := body["stream"]; ok && stream != false {
			t.Errorf("Expected non-streaming request, got stream=%v", stream)
		}
		if msgs, ok := body["messages"].([]interface{}); !ok || len(msgs) != 2 {
			t.Errorf("Expected 2 messages, got %v", body["messages"])
		}

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-123",
			Object: "chat.completion",
			Model:  DeepSeekModel,
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: "  {\"is_hoax\": false}  ",
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Messages:    BuildMessages("some text", "text"),
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != `{"is_hoax": false}` {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Expected 100 tokens, got %d", resp.TokensUsed)
	}
	if provider.Name() != "deepseek" {
		t.Errorf("Expected name deepseek, got %s", provider.Name())
	}
}

func TestDeepSeekProvider_Chat_ZeroTemperatureIsSent(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		temp, ok := body["temperature"].(float64)
		if !ok {
			t.Errorf("Expected temperature to be present in the payload")
		}
		if temp > 0.0001 {
			t.Errorf("Expected near-zero temperature, got %v", temp)
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "OK"}}},
		})
	})

	if _, err := provider.Chat(context.Background(), ChatRequest{
		Messages:  []Message{{Role: RoleUser, Content: HealthCheckPrompt}},
		MaxTokens: 5,
	}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
}

func TestDeepSeekProvider_Chat_Unauthorized(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Authentication Fails", "type": "authentication_error"}}`))
	})

	_, err := provider.Chat(context.Background(), ChatRequest{Messages: BuildMessages("x", "text")})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ProviderError, got %T", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", perr.StatusCode)
	}
	if perr.Message != "Authentication Fails" {
		t.Errorf("Expected provider message, got %q", perr.Message)
	}
}

func TestDeepSeekProvider_Chat_NonJSONErrorBody(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream unavailable`))
	})

	_, err := provider.Chat(context.Background(), ChatRequest{Messages: BuildMessages("x", "text")})

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ProviderError, got %T (%v)", err, err)
	}
	if perr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", perr.StatusCode)
	}
	if perr.Message != "" {
		t.Errorf("Expected no provider message, got %q", perr.Message)
	}
}

func TestDeepSeekProvider_Chat_NoChoices(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "empty"})
	})

	_, err := provider.Chat(context.Background(), ChatRequest{Messages: BuildMessages("x", "text")})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("Expected ErrNoChoices, got %v", err)
	}
}

func TestDeepSeekProvider_Chat_ContextDeadline(t *testing.T) {
	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := provider.Chat(ctx, ChatRequest{Messages: BuildMessages("x", "text")})
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestNewDeepSeekProvider_MissingKey(t *testing.T) {
	_, err := NewDeepSeekProvider(Config{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAIProvider_Name(t *testing.T) {
	provider, err := NewOpenAIProvider(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("Expected name openai, got %s", provider.Name())
	}
}

func TestProviderError_Message(t *testing.T) {
	tests := []struct {
		err  *ProviderError
		want string
	}{
		{&ProviderError{Provider: "deepseek", StatusCode: 429, Message: "Rate limit"}, "deepseek API error (429): Rate limit"},
		{&ProviderError{Provider: "deepseek", StatusCode: 500}, "deepseek API error (500)"},
		{&ProviderError{Provider: "ollama", Err: errors.New("connection refused")}, "ollama request failed: connection refused"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/model"
)

// MinAnalysisLength is the shortest trimmed text the analyzer will send to a
// provider. It is stricter than the service-level minimum on purpose: texts
// between the two limits never reach the provider.
const MinAnalysisLength = 50

// Health probe states
const (
	HealthOK    = "ok"
	HealthError = "error"
)

// HealthStatus is the result of a provider reachability probe
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Reply   string `json:"api_response,omitempty"`
}

// Analyzer classifies text with an LLM provider and normalizes every outcome to a verdict
type Analyzer struct {
	provider    Provider // nil when no credential is configured
	name        string
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewAnalyzer wraps a provider. A nil provider yields "not configured" verdicts
// without touching the network.
func NewAnalyzer(provider Provider, config Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultConfig().MaxTokens
	}
	return &Analyzer{
		provider:    provider,
		name:        DisplayName(config.Provider),
		model:       config.Model,
		maxTokens:   maxTokens,
		temperature: config.Temperature,
		logger:      logger.Named("analyzer"),
	}
}

// Name returns the user-facing provider label
func (a *Analyzer) Name() string {
	return a.name
}

// Configured reports whether a provider is available
func (a *Analyzer) Configured() bool {
	return a.provider != nil
}

// Analyze classifies text. Structured failures (missing key, short text,
// provider errors, unparseable output) come back as error verdicts. The
// returned error is non-nil only when ctx is cancelled or past its deadline.
func (a *Analyzer) Analyze(ctx context.Context, text, contentType string) (model.Verdict, error) {
	if a.provider == nil {
		return a.errorVerdict(a.name + " API key not configured. Analysis skipped."), nil
	}

	if len(strings.TrimSpace(text)) < MinAnalysisLength {
		return a.errorVerdict("Text is too short or empty for meaningful analysis."), nil
	}

	resp, err := a.provider.Chat(ctx, ChatRequest{
		Messages:    BuildMessages(text, contentType),
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Verdict{}, eris.Wrap(ctxErr, "analyze")
		}
		a.logger.Warn("provider call failed", zap.String("provider", a.provider.Name()), zap.Error(err))
		return a.errorVerdict(a.failureMessage(err)), nil
	}

	v := ParseResponse(resp.Content)
	if v.Failed() {
		a.logger.Warn("unparseable provider response",
			zap.String("provider", a.provider.Name()),
			zap.String("error", v.ErrorMessage),
		)
	}
	return v, nil
}

// HealthCheck sends a minimal prompt to confirm the provider answers
func (a *Analyzer) HealthCheck(ctx context.Context) HealthStatus {
	if a.provider == nil {
		return HealthStatus{Status: HealthError, Message: a.name + " API key not configured."}
	}

	resp, err := a.provider.Chat(ctx, ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: HealthCheckPrompt}},
		Model:       a.model,
		MaxTokens:   5,
		Temperature: 0,
	})
	if err != nil {
		if errors.Is(err, ErrNoChoices) {
			return HealthStatus{Status: HealthError, Message: a.name + " API did not return expected health check response."}
		}
		return HealthStatus{Status: HealthError, Message: a.name + " API health check failed: " + err.Error()}
	}

	return HealthStatus{Status: HealthOK, Message: a.name + " API is responsive.", Reply: resp.Content}
}

func (a *Analyzer) failureMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.StatusCode == http.StatusUnauthorized:
			return a.name + " API authentication failed. Check your API key."
		case perr.Message != "":
			return a.name + " API error: " + perr.Message
		case errors.Is(perr.Err, ErrNoChoices):
			return "Received no valid choice from " + a.name + " API."
		}
	}
	return "Failed to analyze text with " + a.name + " API."
}

func (a *Analyzer) errorVerdict(message string) model.Verdict {
	return model.NewErrorVerdict(model.ProviderAI, model.CategoryError, "Analysis could not be performed.", message, nil)
}

// Package verify decides, per request, which classification path runs and
// normalizes the outcome into a response envelope.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/cache"
	"github.com/ppiankov/antihoax/internal/fetch"
	"github.com/ppiankov/antihoax/internal/llm"
	"github.com/ppiankov/antihoax/internal/model"
)

// MinTextLength is the shortest trimmed input the service accepts.
// The analyzer applies its own, stricter llm.MinAnalysisLength.
const MinTextLength = 10

// Content types
const (
	TypeText = "text"
	TypeURL  = "url"
)

// Analyzer classifies text with an AI provider
type Analyzer interface {
	Name() string
	Configured() bool
	Analyze(ctx context.Context, text, contentType string) (model.Verdict, error)
	HealthCheck(ctx context.Context) llm.HealthStatus
}

// Classifier is the keyword fallback
type Classifier interface {
	Classify(text string) model.Verdict
}

// Fetcher retrieves the readable text of a web page
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Request is one verification request
type Request struct {
	Text   string `json:"text"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// Options controls the decision flow
type Options struct {
	// AIEnabled is the administrative switch for AI analysis
	AIEnabled bool

	// FallbackOnError runs the heuristic when the analyzer returns an error verdict.
	// When false the error verdict is surfaced with a 500 hint.
	FallbackOnError bool

	// ExposeRawResponse keeps the provider's raw output in verdicts
	ExposeRawResponse bool
}

// Option configures optional collaborators
type Option func(*Service)

// WithFetcher enables the "url" content type
func WithFetcher(f Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithCache caches successful AI verdicts for ttl (zero uses the store default)
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service reconciles the AI and heuristic classification paths
type Service struct {
	analyzer   Analyzer
	classifier Classifier
	fetcher    Fetcher
	cache      cache.Store
	cacheTTL   time.Duration
	opts       Options
	logger     *zap.Logger
}

// NewService creates a service. analyzer may be nil when AI analysis is never used.
func NewService(analyzer Analyzer, classifier Classifier, opts Options, options ...Option) *Service {
	s := &Service{
		analyzer:   analyzer,
		classifier: classifier,
		opts:       opts,
		logger:     zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	s.logger = s.logger.Named("verify")
	return s
}

// Evaluate classifies one request. It always returns a well-formed envelope.
func (s *Service) Evaluate(ctx context.Context, req Request) model.Envelope {
	start := time.Now()
	v, hint := s.evaluate(ctx, req)

	if !s.opts.ExposeRawResponse {
		v.RawResponse = ""
	}

	env := model.Wrap(v, hint)
	s.logger.Info("verification finished",
		zap.String("type", contentType(req.Type)),
		zap.String("provider", string(v.Provider)),
		zap.String("status", string(v.Status())),
		zap.String("category", v.Category),
		zap.Float64("confidence", v.Confidence),
		zap.Bool("success", env.Success),
		zap.Duration("elapsed", time.Since(start)),
	)
	return env
}

func (s *Service) evaluate(ctx context.Context, req Request) (model.Verdict, int) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return validationError("Input text cannot be empty."), http.StatusBadRequest
	}
	if utf8.RuneCountInString(text) < MinTextLength {
		return validationError("Text is too short for meaningful analysis."), http.StatusBadRequest
	}

	ct := contentType(req.Type)
	if ct == TypeURL && s.fetcher != nil {
		pageText, v, hint, ok := s.fetchPage(ctx, text)
		if !ok {
			return v, hint
		}
		text = pageText
	}

	if !s.opts.AIEnabled || s.analyzer == nil {
		v := s.classifier.Classify(text)
		v.FallbackReason = "AI analysis is disabled by configuration."
		return v, http.StatusOK
	}

	key := cache.Key(ct, text)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if v, ok := cached.(model.Verdict); ok {
				s.logger.Debug("cache hit", zap.String("key", key))
				return v, http.StatusOK
			}
		}
	}

	v, err := s.analyze(ctx, text, ct)
	if err != nil {
		s.logger.Error("AI analysis failed, using heuristic fallback", zap.Error(err))
		fb := s.classifier.Classify(text)
		fb.Category = model.CategoryProviderError
		fb.FallbackReason = fmt.Sprintf("%s analysis failed: %v", s.analyzer.Name(), err)
		return fb, http.StatusInternalServerError
	}

	if v.Failed() {
		if !s.opts.FallbackOnError {
			return v, http.StatusInternalServerError
		}
		s.logger.Warn("AI analysis returned an error verdict, using heuristic fallback",
			zap.String("error", v.ErrorMessage),
		)
		fb := s.classifier.Classify(text)
		fb.FallbackReason = v.ErrorMessage
		return fb, http.StatusOK
	}

	if s.cache != nil {
		s.cache.Set(key, v, s.cacheTTL)
	}
	return v, http.StatusOK
}

// analyze calls the analyzer, turning a panic into an error
func (s *Service) analyze(ctx context.Context, text, ct string) (v model.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("analyzer panic: %v", r)
		}
	}()
	return s.analyzer.Analyze(ctx, text, ct)
}

func (s *Service) fetchPage(ctx context.Context, rawURL string) (string, model.Verdict, int, bool) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))

		if errors.Is(err, fetch.ErrUnsupportedURL) {
			return "", validationError("A valid http or https URL is required."), http.StatusBadRequest, false
		}
		if errors.Is(err, fetch.ErrBlockedHost) {
			return "", validationError("The URL must point to a public web address."), http.StatusBadRequest, false
		}
		return "", fetchError("Could not retrieve the page: " + eris.Cause(err).Error()), http.StatusBadGateway, false
	}

	text := page.Text
	if page.Title != "" && !strings.HasPrefix(text, page.Title) {
		text = page.Title + ". " + text
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return "", fetchError("The page has no readable text to analyze."), http.StatusUnprocessableEntity, false
	}
	return text, model.Verdict{}, 0, true
}

// Status reports the service and its dependencies
func (s *Service) Status(ctx context.Context) model.ServiceStatus {
	name := llm.DisplayName("")
	configured := false
	if s.analyzer != nil {
		name = s.analyzer.Name()
		configured = s.analyzer.Configured()
	}

	ai := model.DependencyStatus{
		Name:       name + " API",
		Configured: configured,
		Enabled:    s.opts.AIEnabled,
		Status:     model.DependencyNotAvailable,
	}
	switch {
	case !configured:
		ai.Message = "API key not configured"
	case !s.opts.AIEnabled:
		ai.Message = "Disabled via configuration"
	default:
		health := s.analyzer.HealthCheck(ctx)
		ai.Status = health.Status
		ai.Message = health.Message
	}

	result := model.DependencyStatus{
		Name:       "Result cache",
		Configured: s.cache != nil,
		Enabled:    s.cache != nil && s.opts.AIEnabled,
		Status:     model.DependencyNotAvailable,
		Message:    "Caching disabled",
	}
	if s.cache != nil {
		result.Status = model.DependencyOK
		result.Message = fmt.Sprintf("%d entries", s.cache.Size())
	}

	overall := model.OverallIssuesDetected
	if s.opts.AIEnabled && ai.Status == model.DependencyOK {
		overall = model.OverallOperational
	}

	return model.ServiceStatus{
		OverallStatus: overall,
		Timestamp:     time.Now().UTC(),
		Dependencies:  []model.DependencyStatus{ai, result},
	}
}

func contentType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return TypeText
	}
	return t
}

func validationError(message string) model.Verdict {
	return model.NewErrorVerdict(model.ProviderHeuristic, model.CategoryValidationError, message, message, []string{message})
}

func fetchError(message string) model.Verdict {
	return model.NewErrorVerdict(model.ProviderHeuristic, model.CategoryFetchError, message, message, []string{message})
}

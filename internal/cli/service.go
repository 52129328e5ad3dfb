package cli

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/cache"
	"github.com/ppiankov/antihoax/internal/config"
	"github.com/ppiankov/antihoax/internal/fetch"
	"github.com/ppiankov/antihoax/internal/heuristic"
	"github.com/ppiankov/antihoax/internal/llm"
	"github.com/ppiankov/antihoax/internal/verify"
)

// buildService wires the verification service from configuration.
// A missing API key is not an error: the analyzer reports itself unconfigured.
func buildService(ctx context.Context, c *config.Config, log *zap.Logger) (*verify.Service, error) {
	llmCfg := c.AI.LLMConfig()

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		if !errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, eris.Wrap(err, "create AI provider")
		}
		provider = nil
		if c.AI.Enabled {
			log.Warn("AI analysis enabled but no API key configured", zap.String("provider", llmCfg.Provider))
		}
	}

	analyzer := llm.NewAnalyzer(provider, llmCfg, log)

	opts := []verify.Option{verify.WithLogger(log)}

	if c.Fetch.Enabled {
		opts = append(opts, verify.WithFetcher(fetch.NewFetcher(fetch.Options{
			Timeout:       time.Duration(c.Fetch.TimeoutSecs) * time.Second,
			UserAgent:     c.Fetch.UserAgent,
			MaxBytes:      c.Fetch.MaxBytes,
			RespectRobots: c.Fetch.RespectRobots,
			Proxy:         c.AI.Proxy(),
			Limiter:       c.Fetch.Limiter(),
		})))
	}

	if c.Cache.Enabled {
		store := cache.NewTTLCache(c.Cache.TTL())
		if interval := c.Cache.SweepInterval(); interval > 0 {
			cache.StartSweeper(ctx, store, interval, log)
		}
		opts = append(opts, verify.WithCache(store, c.Cache.TTL()))
	}

	return verify.NewService(analyzer, heuristic.NewClassifier(), verify.Options{
		AIEnabled:         c.AI.Enabled,
		FallbackOnError:   c.AI.FallbackOnError,
		ExposeRawResponse: c.AI.ExposeRawResponse,
	}, opts...), nil
}

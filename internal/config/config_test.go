package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/llm"
)

// isolate moves into an empty directory with an empty HOME so no config or .env is found
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	t.Setenv("HOME", dir)
	for _, env := range legacyEnv {
		t.Setenv(env, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, used, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.AI.Enabled)
	assert.True(t, cfg.AI.FallbackOnError)
	assert.Equal(t, "deepseek", cfg.AI.Provider)
	assert.Empty(t, cfg.AI.Model, "each provider picks its own default model")
	assert.Equal(t, 1000, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 0.001)
	assert.Equal(t, 300, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 100, cfg.RateLimit.GlobalRequests)
	assert.Equal(t, 20, cfg.RateLimit.VerifyRequests)
	assert.InDelta(t, 0.7, cfg.Dataset.MinAccuracy, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := isolate(t)

	yaml := `
ai:
  enabled: true
  provider: openai
  model: gpt-4o-mini
cache:
  enabled: true
  default_ttl_seconds: 60
server:
  port: 9090
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, used, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "config.yaml", filepath.Base(used))
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.AI.TimeoutSecs)
	assert.Equal(t, 20, cfg.RateLimit.VerifyRequests)
}

func TestLoadProviderWithoutModel(t *testing.T) {
	isolate(t)
	t.Setenv("ANTIHOAX_AI_PROVIDER", "anthropic")
	t.Setenv("ANTIHOAX_AI_API_KEY", "sk-ant-test")

	cfg, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Empty(t, cfg.AI.Model)

	llmCfg := cfg.AI.LLMConfig()
	assert.Empty(t, llmCfg.Model)
	provider, err := llm.NewProvider(llmCfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider.Name())
}

func TestLoadHomeConfig(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".antihoax"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".antihoax", "config.yaml"), []byte("server:\n  port: 4000\n"), 0644))

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset:\n  concurrency: 8\n"), 0644))

	cfg, used, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 8, cfg.Dataset.Concurrency)

	_, _, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFetchHostRates(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
fetch:
  requests_per_second: 5
  host_rates:
    - host: Slow.Example
      requests_per_second: 0.01
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Fetch.HostRates, 1)
	assert.Equal(t, "Slow.Example", cfg.Fetch.HostRates[0].Host)
	assert.InDelta(t, 0.01, cfg.Fetch.HostRates[0].RequestsPerSecond, 0.0001)

	l := cfg.Fetch.Limiter()
	require.NotNil(t, l)
	assert.True(t, l.Allow("slow.example"))
	assert.False(t, l.Allow("slow.example"), "override allows one request per 100s")
	assert.True(t, l.Allow("fast.example"))

	cfg.Fetch.RequestsPerSecond = 0
	assert.Nil(t, cfg.Fetch.Limiter())

	cfg.Fetch.HostRates = append(cfg.Fetch.HostRates, HostRate{Host: "bad.example"})
	assert.Error(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9090\n"), 0644))

	t.Setenv("ANTIHOAX_SERVER_PORT", "7070")
	t.Setenv("ANTIHOAX_AI_FALLBACK_ON_ERROR", "false")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.AI.FallbackOnError)
}

func TestLoadLegacyEnv(t *testing.T) {
	isolate(t)

	t.Setenv("DEEPSEEK_API_KEY", "sk-legacy")
	t.Setenv("ENABLE_DEEPSEEK_ANALYSIS", "true")
	t.Setenv("CACHE_DEFAULT_TTL_SECONDS", "120")
	t.Setenv("PORT", "8081")
	t.Setenv("API_URL", "http://api.internal:3001")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-legacy", cfg.AI.APIKey)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, 120, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "http://api.internal:3001", cfg.Dataset.APIURL)
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	isolate(t)

	t.Setenv("DEEPSEEK_API_KEY", "sk-legacy")
	t.Setenv("ANTIHOAX_AI_API_KEY", "sk-new")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-new", cfg.AI.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTIHOAX_LOG_LEVEL=warn\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("ANTIHOAX_LOG_LEVEL") })

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"temperature", func(c *Config) { c.AI.Temperature = 3 }},
		{"ttl", func(c *Config) { c.Cache.DefaultTTLSeconds = 0 }},
		{"rate limit", func(c *Config) { c.RateLimit.VerifyRequests = 0 }},
		{"accuracy", func(c *Config) { c.Dataset.MinAccuracy = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.VerifyRequests = 0
	assert.NoError(t, cfg.Validate(), "disabled rate limiting skips window checks")
}

func TestAIConfigConversion(t *testing.T) {
	ai := Default().AI
	ai.APIKey = "sk-test"
	ai.HTTPSProxy = "http://proxy:3128"

	llmCfg := ai.LLMConfig()
	assert.Equal(t, "deepseek", llmCfg.Provider)
	assert.Equal(t, "sk-test", llmCfg.APIKey)
	assert.Equal(t, 30, llmCfg.Timeout)
	assert.Equal(t, "http://proxy:3128", ai.Proxy().HTTPSProxy)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":3001", Default().Server.Addr())
	assert.Equal(t, "127.0.0.1:80", ServerConfig{Host: "127.0.0.1", Port: 80}.Addr())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = NewLogger(LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
	assert.True(t, zap.L().Core().Enabled(zap.WarnLevel))
}

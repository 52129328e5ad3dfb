package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/antihoax/internal/llm"
	"github.com/ppiankov/antihoax/internal/ratelimit"
	"github.com/ppiankov/antihoax/internal/util"
)

// EnvPrefix prefixes every environment override, e.g. ANTIHOAX_AI_API_KEY
const EnvPrefix = "ANTIHOAX"

// Config holds the full application configuration.
type Config struct {
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AIConfig configures the AI provider and how its failures are handled.
type AIConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	FallbackOnError   bool    `yaml:"fallback_on_error" mapstructure:"fallback_on_error"`
	ExposeRawResponse bool    `yaml:"expose_raw_response" mapstructure:"expose_raw_response"`
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy         string  `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CacheConfig configures the AI verdict cache.
type CacheConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	DefaultTTLSeconds int  `yaml:"default_ttl_seconds" mapstructure:"default_ttl_seconds"`
	SweepIntervalSecs int  `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host                string   `yaml:"host" mapstructure:"host"`
	Port                int      `yaml:"port" mapstructure:"port"`
	Mode                string   `yaml:"mode" mapstructure:"mode"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// RateLimitConfig configures per-client request windows.
type RateLimitConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	GlobalRequests   int  `yaml:"global_requests" mapstructure:"global_requests"`
	GlobalWindowSecs int  `yaml:"global_window_secs" mapstructure:"global_window_secs"`
	VerifyRequests   int  `yaml:"verify_requests" mapstructure:"verify_requests"`
	VerifyWindowSecs int  `yaml:"verify_window_secs" mapstructure:"verify_window_secs"`
}

// FetchConfig configures URL retrieval for the "url" content type.
type FetchConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes      int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`

	// Outbound pacing per host; HostRates overrides it for named hosts
	RequestsPerSecond float64    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	HostRates         []HostRate `yaml:"host_rates,omitempty" mapstructure:"host_rates"`
}

// HostRate overrides outbound pacing for one host. A list, since viper splits map keys on dots.
type HostRate struct {
	Host              string  `yaml:"host" mapstructure:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// DatasetConfig configures the sample dataset and e2e runs.
type DatasetConfig struct {
	Path        string  `yaml:"path" mapstructure:"path"`
	APIURL      string  `yaml:"api_url" mapstructure:"api_url"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	MinAccuracy float64 `yaml:"min_accuracy" mapstructure:"min_accuracy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps environment names used by earlier deployments to config keys
var legacyEnv = map[string]string{
	"ai.api_key":                "DEEPSEEK_API_KEY",
	"ai.enabled":                "ENABLE_DEEPSEEK_ANALYSIS",
	"cache.default_ttl_seconds": "CACHE_DEFAULT_TTL_SECONDS",
	"server.port":               "PORT",
	"dataset.api_url":           "API_URL",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Enabled:         false,
			FallbackOnError: true,
			Provider:        "deepseek",
			TimeoutSecs:     30,
			MaxTokens:       1000,
			Temperature:     0.2,
		},
		Cache: CacheConfig{
			Enabled:           false,
			DefaultTTLSeconds: 300,
			SweepIntervalSecs: 60,
		},
		Server: ServerConfig{
			Port:                3001,
			Mode:                "release",
			CORSOrigins:         []string{"*"},
			ShutdownTimeoutSecs: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			GlobalRequests:   100,
			GlobalWindowSecs: 15 * 60,
			VerifyRequests:   20,
			VerifyWindowSecs: 10 * 60,
		},
		Fetch: FetchConfig{
			Enabled:       true,
			TimeoutSecs:   15,
			UserAgent:     "antihoax/1.0 (+https://github.com/ppiankov/antihoax)",
			MaxBytes:      2 << 20,
			RespectRobots: true,

			RequestsPerSecond: 1,
		},
		Dataset: DatasetConfig{
			APIURL:      "http://localhost:3001",
			Concurrency: 4,
			MinAccuracy: 0.7,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file, .env and the environment.
// An empty cfgFile searches ./config.yaml then $HOME/.antihoax/config.yaml.
func Load(cfgFile string) (*Config, string, error) {
	v := viper.New()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".antihoax"))
		}
	}

	// .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, "", eris.Wrap(err, "config: load .env")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envName(key), env); err != nil {
			return nil, "", eris.Wrapf(err, "config: bind %s", env)
		}
	}

	setDefaults(v, Default())

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, "", eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, v.ConfigFileUsed(), nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ai.enabled", d.AI.Enabled)
	v.SetDefault("ai.fallback_on_error", d.AI.FallbackOnError)
	v.SetDefault("ai.expose_raw_response", d.AI.ExposeRawResponse)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout_secs", d.AI.TimeoutSecs)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.http_proxy", "")
	v.SetDefault("ai.https_proxy", "")
	v.SetDefault("ai.no_proxy", "")
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.default_ttl_seconds", d.Cache.DefaultTTLSeconds)
	v.SetDefault("cache.sweep_interval_secs", d.Cache.SweepIntervalSecs)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.shutdown_timeout_secs", d.Server.ShutdownTimeoutSecs)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.global_requests", d.RateLimit.GlobalRequests)
	v.SetDefault("rate_limit.global_window_secs", d.RateLimit.GlobalWindowSecs)
	v.SetDefault("rate_limit.verify_requests", d.RateLimit.VerifyRequests)
	v.SetDefault("rate_limit.verify_window_secs", d.RateLimit.VerifyWindowSecs)
	v.SetDefault("fetch.enabled", d.Fetch.Enabled)
	v.SetDefault("fetch.timeout_secs", d.Fetch.TimeoutSecs)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	v.SetDefault("fetch.respect_robots", d.Fetch.RespectRobots)
	v.SetDefault("fetch.requests_per_second", d.Fetch.RequestsPerSecond)
	v.SetDefault("dataset.path", d.Dataset.Path)
	v.SetDefault("dataset.api_url", d.Dataset.APIURL)
	v.SetDefault("dataset.concurrency", d.Dataset.Concurrency)
	v.SetDefault("dataset.min_accuracy", d.Dataset.MinAccuracy)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LLMConfig converts the AI section into a provider config.
func (c AIConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Timeout:     c.TimeoutSecs,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		HTTPProxy:   c.HTTPProxy,
		HTTPSProxy:  c.HTTPSProxy,
		NoProxy:     c.NoProxy,
	}
}

// Proxy returns the outbound proxy settings.
func (c AIConfig) Proxy() util.ProxyConfig {
	return util.ProxyConfig{HTTPProxy: c.HTTPProxy, HTTPSProxy: c.HTTPSProxy, NoProxy: c.NoProxy}
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// SweepInterval returns how often expired entries are removed.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// Limiter builds the outbound per-host limiter, nil when pacing is off.
func (c FetchConfig) Limiter() *ratelimit.Limiter {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	l := ratelimit.NewLimiter(c.RequestsPerSecond, 1)
	for _, hr := range c.HostRates {
		l.SetKeyRate(strings.ToLower(hr.Host), hr.RequestsPerSecond, 1)
	}
	return l
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return eris.Errorf("config: ai.temperature must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		return eris.Errorf("config: cache.default_ttl_seconds must be positive, got %d", c.Cache.DefaultTTLSeconds)
	}
	if c.RateLimit.Enabled && (c.RateLimit.GlobalRequests <= 0 || c.RateLimit.VerifyRequests <= 0 ||
		c.RateLimit.GlobalWindowSecs <= 0 || c.RateLimit.VerifyWindowSecs <= 0) {
		return eris.New("config: rate_limit requests and windows must be positive")
	}
	for _, hr := range c.Fetch.HostRates {
		if hr.Host == "" || hr.RequestsPerSecond <= 0 {
			return eris.Errorf("config: fetch.host_rates entry %q needs a host and a positive rate", hr.Host)
		}
	}
	if c.Dataset.MinAccuracy < 0 || c.Dataset.MinAccuracy > 1 {
		return eris.Errorf("config: dataset.min_accuracy must be between 0 and 1, got %v", c.Dataset.MinAccuracy)
	}
	return nil
}

// NewLogger builds a zap logger for the given settings.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

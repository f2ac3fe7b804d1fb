package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Cache     CacheConfig     `yaml:"cache"`
	Cleaner   CleanerConfig   `yaml:"cleaner"`
	LLM       LLMConfig       `yaml:"llm"`
	Batch     BatchConfig     `yaml:"batch"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "127.0.0.1"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the page backend.
type BrowserConfig struct {
	// Engine selects the backend: "rod" (headless Chrome) or "http" (static fetch).
	Engine string `yaml:"engine"` // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int `yaml:"max_pages"` // default: 5

	// DefaultProxy is the proxy URL for all requests.
	DefaultProxy string `yaml:"proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"bin"`

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool `yaml:"stealth"` // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resources"`

	// BlockAds blocks requests to known ad and tracking domains.
	BlockAds bool `yaml:"block_ads"` // default: true

	// RemoveOverlays strips fixed cookie banners and popups after navigation.
	RemoveOverlays bool `yaml:"remove_overlays"` // default: false
}

// ScraperConfig controls scrape sessions.
type ScraperConfig struct {
	// DefaultTimeout is the per-session deadline when a request gives none.
	DefaultTimeout time.Duration `yaml:"default_timeout"` // default: 30s

	// MaxTimeout caps the deadline a client may request.
	MaxTimeout time.Duration `yaml:"max_timeout"` // default: 120s

	// ActionTimeout bounds how long an action waits for its selector.
	ActionTimeout time.Duration `yaml:"action_timeout"` // default: 5s

	// WaitForTimeout bounds the post-navigation wait_for selector.
	WaitForTimeout time.Duration `yaml:"wait_for_timeout"` // default: 10s
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// Backend is "sqlite" (durable) or "memory".
	Backend string `yaml:"backend"` // default: "sqlite"

	// Path is the SQLite database file.
	Path string `yaml:"path"` // default: $XDG_CACHE_HOME/firescrape/cache.db

	// DefaultTTL applies when a request does not set max_age.
	DefaultTTL time.Duration `yaml:"default_ttl"` // default: 48h

	// MaxEntries bounds the memory backend.
	MaxEntries int `yaml:"max_entries"` // default: 1000

	// SweepInterval is how often the memory backend drops expired entries.
	SweepInterval time.Duration `yaml:"sweep_interval"` // default: 5m
}

// CleanerConfig tunes main-content isolation.
type CleanerConfig struct {
	MinReadabilityLength int `yaml:"min_readability_length"` // default: 500
	MinFragmentLength    int `yaml:"min_fragment_length"`    // default: 50
}

// LLMConfig selects and configures the AI extraction backend.
type LLMConfig struct {
	// Provider is "openai", "anthropic" or "" (disabled).
	Provider string `yaml:"provider"`

	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"` // default: 4096

	// MaxInputChars truncates the page text sent to the model.
	MaxInputChars int `yaml:"max_input_chars"` // default: 8000

	// Timeout bounds one extraction call.
	Timeout time.Duration `yaml:"timeout"` // default: 60s
}

// BatchConfig controls the batch scheduler.
type BatchConfig struct {
	// MaxConcurrency is the default worker pool size.
	MaxConcurrency int `yaml:"max_concurrency"` // default: 3

	// NearDuplicateThreshold is the SimHash distance reported as near-duplicate.
	NearDuplicateThreshold int `yaml:"near_duplicate_threshold"` // default: 3
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"rps"` // default: 5

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Mode: "release",
		},
		Browser: BrowserConfig{
			Engine:               "rod",
			Headless:             true,
			MaxPages:             5,
			Stealth:              true,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
			BlockAds:             true,
		},
		Scraper: ScraperConfig{
			DefaultTimeout: 30 * time.Second,
			MaxTimeout:     120 * time.Second,
			ActionTimeout:  5 * time.Second,
			WaitForTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:       "sqlite",
			Path:          defaultCachePath(),
			DefaultTTL:    48 * time.Hour,
			MaxEntries:    1000,
			SweepInterval: 5 * time.Minute,
		},
		Cleaner: CleanerConfig{
			MinReadabilityLength: 500,
			MinFragmentLength:    50,
		},
		LLM: LLMConfig{
			MaxTokens:     4096,
			MaxInputChars: 8000,
			Timeout:       60 * time.Second,
		},
		Batch: BatchConfig{
			MaxConcurrency:         3,
			NearDuplicateThreshold: 3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5.0,
			Burst:             10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// FIRESCRAPE_CONFIG (if any) and FIRESCRAPE_* environment variables, in
// that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FIRESCRAPE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("FIRESCRAPE_HOST", c.Server.Host)
	c.Server.Port = envIntOr("FIRESCRAPE_PORT", c.Server.Port)
	c.Server.Mode = envOr("FIRESCRAPE_MODE", c.Server.Mode)

	c.Browser.Engine = envOr("FIRESCRAPE_BROWSER_ENGINE", c.Browser.Engine)
	c.Browser.Headless = envBoolOr("FIRESCRAPE_HEADLESS", c.Browser.Headless)
	c.Browser.MaxPages = envIntOr("FIRESCRAPE_MAX_PAGES", c.Browser.MaxPages)
	c.Browser.DefaultProxy = envOr("FIRESCRAPE_PROXY", c.Browser.DefaultProxy)
	c.Browser.NoSandbox = envBoolOr("FIRESCRAPE_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("FIRESCRAPE_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.Stealth = envBoolOr("FIRESCRAPE_STEALTH", c.Browser.Stealth)
	c.Browser.BlockedResourceTypes = envSliceOr("FIRESCRAPE_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)
	c.Browser.BlockAds = envBoolOr("FIRESCRAPE_BLOCK_ADS", c.Browser.BlockAds)
	c.Browser.RemoveOverlays = envBoolOr("FIRESCRAPE_REMOVE_OVERLAYS", c.Browser.RemoveOverlays)

	c.Scraper.DefaultTimeout = envDurationOr("FIRESCRAPE_DEFAULT_TIMEOUT", c.Scraper.DefaultTimeout)
	c.Scraper.MaxTimeout = envDurationOr("FIRESCRAPE_MAX_TIMEOUT", c.Scraper.MaxTimeout)
	c.Scraper.ActionTimeout = envDurationOr("FIRESCRAPE_ACTION_TIMEOUT", c.Scraper.ActionTimeout)
	c.Scraper.WaitForTimeout = envDurationOr("FIRESCRAPE_WAIT_FOR_TIMEOUT", c.Scraper.WaitForTimeout)

	c.Cache.Backend = envOr("FIRESCRAPE_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Path = envOr("FIRESCRAPE_CACHE_PATH", c.Cache.Path)
	c.Cache.DefaultTTL = envDurationOr("FIRESCRAPE_CACHE_TTL", c.Cache.DefaultTTL)
	c.Cache.MaxEntries = envIntOr("FIRESCRAPE_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Cleaner.MinReadabilityLength = envIntOr("FIRESCRAPE_MIN_READABILITY_LENGTH", c.Cleaner.MinReadabilityLength)
	c.Cleaner.MinFragmentLength = envIntOr("FIRESCRAPE_MIN_FRAGMENT_LENGTH", c.Cleaner.MinFragmentLength)

	c.LLM.Provider = envOr("FIRESCRAPE_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = envOr("FIRESCRAPE_LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = envOr("FIRESCRAPE_LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = envOr("FIRESCRAPE_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.MaxTokens = envIntOr("FIRESCRAPE_LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.MaxInputChars = envIntOr("FIRESCRAPE_LLM_MAX_INPUT_CHARS", c.LLM.MaxInputChars)
	c.LLM.Timeout = envDurationOr("FIRESCRAPE_LLM_TIMEOUT", c.LLM.Timeout)
	c.resolveLLMProvider()

	c.Batch.MaxConcurrency = envIntOr("FIRESCRAPE_BATCH_CONCURRENCY", c.Batch.MaxConcurrency)
	c.Batch.NearDuplicateThreshold = envIntOr("FIRESCRAPE_NEAR_DUPLICATE_THRESHOLD", c.Batch.NearDuplicateThreshold)

	c.Auth.Enabled = envBoolOr("FIRESCRAPE_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("FIRESCRAPE_API_KEYS", c.Auth.APIKeys)

	c.RateLimit.RequestsPerSecond = envFloatOr("FIRESCRAPE_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("FIRESCRAPE_RATE_BURST", c.RateLimit.Burst)

	c.Log.Level = envOr("FIRESCRAPE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("FIRESCRAPE_LOG_FORMAT", c.Log.Format)
}

// resolveLLMProvider picks a provider from the vendor key variables when
// none is configured, and fills the key from them when the provider is set.
func (c *Config) resolveLLMProvider() {
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	if c.LLM.Provider == "" && c.LLM.APIKey == "" {
		switch {
		case anthropicKey != "":
			c.LLM.Provider = "anthropic"
		case openaiKey != "":
			c.LLM.Provider = "openai"
		}
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = anthropicKey
		case "openai":
			c.LLM.APIKey = openaiKey
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "rod", "http":
	default:
		return fmt.Errorf("config: unknown browser engine %q", c.Browser.Engine)
	}
	switch c.Cache.Backend {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	switch c.LLM.Provider {
	case "", "none", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("config: batch max concurrency must be at least 1, got %d", c.Batch.MaxConcurrency)
	}
	if c.Browser.MaxPages < 1 {
		return fmt.Errorf("config: max pages must be at least 1, got %d", c.Browser.MaxPages)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %s", c.Cache.DefaultTTL)
	}
	if c.Scraper.ActionTimeout <= 0 {
		return fmt.Errorf("config: action timeout must be positive, got %s", c.Scraper.ActionTimeout)
	}
	return nil
}

// NewLogger builds a slog.Logger writing to w in the configured format.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "firescrape", "cache.db")
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration, built once at startup and passed
// explicitly to every component.
type Config struct {
	Includes []string      `yaml:"includes,omitempty"`
	Server   ServerConfig  `yaml:"server"`
	Search   SearchConfig  `yaml:"search"`
	LLM      LLMConfig     `yaml:"llm"`
	Related  RelatedConfig `yaml:"related"`
	Store    StoreConfig   `yaml:"store"`
	Logger   LoggerConfig  `yaml:"logger"`
	Tracer   TracerConfig  `yaml:"tracer"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr              string          `yaml:"addr"`
	UIDir             string          `yaml:"ui_dir"`
	MaxConcurrency    int             `yaml:"max_concurrency"`
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration   `yaml:"shutdown_timeout"`
	Metrics           bool            `yaml:"metrics"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	WebSocket         bool            `yaml:"websocket"`
	MCP               MCPConfig       `yaml:"mcp"`
}

// RateLimitConfig configures per-IP request throttling.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PerMinute      int      `yaml:"per_minute"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// MCPConfig controls the Model Context Protocol endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SearchConfig selects and configures the search backend.
type SearchConfig struct {
	Backend    string           `yaml:"backend"`
	Timeout    time.Duration    `yaml:"timeout"`
	Google     GoogleConfig     `yaml:"google"`
	Serper     SerperConfig     `yaml:"serper"`
	Bing       BingConfig       `yaml:"bing"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
	Cache      SearchCache      `yaml:"cache"`
}

// GoogleConfig holds Google Custom Search credentials.
type GoogleConfig struct {
	APIKey   string `yaml:"api_key"`
	CX       string `yaml:"cx"`
	Endpoint string `yaml:"endpoint"`
}

// SerperConfig holds Serper credentials.
type SerperConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// BingConfig holds Bing Web Search v7 credentials.
type BingConfig struct {
	SubscriptionKey string `yaml:"subscription_key"`
	Endpoint        string `yaml:"endpoint"`
	Market          string `yaml:"market"`
}

// DuckDuckGoConfig configures the HTML search scraper.
type DuckDuckGoConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

// SearXNGConfig points at a SearXNG instance.
type SearXNGConfig struct {
	URL string `yaml:"url"`
}

// SearchCache configures the optional in-process search result cache.
// A zero Size disables it.
type SearchCache struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// LLMConfig selects the chat completion client and generation parameters.
type LLMConfig struct {
	Client             string               `yaml:"client"`
	OpenAI             ProviderConfig       `yaml:"openai"`
	Together           ProviderConfig       `yaml:"together"`
	HFTGI              ProviderConfig       `yaml:"hf_tgi"`
	Ollama             ProviderConfig       `yaml:"ollama"`
	MaxTokens          int                  `yaml:"max_tokens"`
	Temperature        float64              `yaml:"temperature"`
	UseStopWords       bool                 `yaml:"use_stop_words"`
	ContextTokenBudget int                  `yaml:"context_token_budget"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Provider returns the settings of the selected client.
func (c LLMConfig) Provider() (ProviderConfig, bool) {
	switch c.Client {
	case ClientOpenAI:
		return c.OpenAI, true
	case ClientTogether:
		return c.Together, true
	case ClientHFTGI:
		return c.HFTGI, true
	case ClientOllama:
		return c.Ollama, true
	}
	return ProviderConfig{}, false
}

// Client identifiers, as accepted by CLIENT.
const (
	ClientOpenAI   = "OPENAI"
	ClientTogether = "TOGETHER"
	ClientHFTGI    = "HF_TGI"
	ClientOllama   = "OLLAMA"
)

// CircuitBreakerConfig holds circuit breaker settings for the LLM client.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// TimeoutProfile mirrors the connect/read/write/pool timeouts of an HTTP client.
type TimeoutProfile struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
	Pool    time.Duration `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int `yaml:"max_conns_per_host"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	BaseURL  string         `yaml:"base_url"`
	APIKey   string         `yaml:"api_key"`
	Model    string         `yaml:"model"`
	Timeouts TimeoutProfile `yaml:"timeouts"`
	Pool     PoolConfig     `yaml:"pool"`
}

// RelatedConfig controls related-question generation.
type RelatedConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	// ToolCalls forces the function-calling path; nil picks it for OPENAI only.
	ToolCalls *bool `yaml:"tool_calls,omitempty"`
}

// UseToolCalls reports whether related questions go through function calling.
func (r RelatedConfig) UseToolCalls(client string) bool {
	if r.ToolCalls != nil {
		return *r.ToolCalls
	}
	return client == ClientOpenAI
}

// StoreConfig selects where finished answers are kept for search_uuid replay.
type StoreConfig struct {
	Backend string        `yaml:"backend"` // none, memory, redis, sqlite
	TTL     time.Duration `yaml:"ttl"`
	Size    int           `yaml:"size"`
	Redis   RedisConfig   `yaml:"redis"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SQLiteConfig holds the sqlite store settings.
type SQLiteConfig struct {
	Path          string `yaml:"path"`
	PurgeSchedule string `yaml:"purge_schedule"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Default timeout profiles. Ollama gets long connect and pool waits because
// the first request may block on a model load.
var (
	DefaultTimeouts = TimeoutProfile{Connect: 10 * time.Second, Read: 120 * time.Second, Write: 120 * time.Second, Pool: 10 * time.Second}
	OllamaTimeouts  = TimeoutProfile{Connect: 100 * time.Second, Read: 120 * time.Second, Write: 120 * time.Second, Pool: 100 * time.Second}
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			UIDir:             "ui",
			MaxConcurrency:    16,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      5 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
			Metrics:           true,
			RateLimit: RateLimitConfig{
				PerMinute: 60,
				Burst:     10,
			},
			MCP: MCPConfig{Path: "/mcp"},
		},
		Search: SearchConfig{
			Backend: "DUCKDUCKGO",
			Timeout: 100 * time.Second,
			Google:  GoogleConfig{Endpoint: "https://customsearch.googleapis.com/customsearch/v1"},
			Serper:  SerperConfig{Endpoint: "https://google.serper.dev/search"},
			Bing: BingConfig{
				Endpoint: "https://api.bing.microsoft.com/v7.0/search",
				Market:   "en-US",
			},
			DuckDuckGo: DuckDuckGoConfig{
				Endpoint: "https://html.duckduckgo.com/html/",
				Region:   "wt-wt",
			},
			Cache: SearchCache{TTL: 10 * time.Minute},
		},
		LLM: LLMConfig{
			Client: ClientOpenAI,
			OpenAI: ProviderConfig{
				BaseURL:  "https://api.openai.com/v1",
				Model:    "gpt-4o-mini",
				Timeouts: DefaultTimeouts,
			},
			Together: ProviderConfig{
				BaseURL:  "https://api.together.xyz/v1",
				Timeouts: DefaultTimeouts,
			},
			HFTGI: ProviderConfig{Timeouts: DefaultTimeouts},
			Ollama: ProviderConfig{
				BaseURL:  "http://localhost:11434",
				Timeouts: OllamaTimeouts,
			},
			MaxTokens:          4000,
			Temperature:        0.7,
			ContextTokenBudget: 6000,
		},
		Related: RelatedConfig{
			Enabled:     true,
			MaxTokens:   512,
			Timeout:     60 * time.Second,
			WaitTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Size:    1000,
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "thesearch:result:"},
			SQLite: SQLiteConfig{
				Path:          "thesearch.db",
				PurgeSchedule: "@every 10m",
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads config from a YAML file, applies .env and environment overrides,
// decrypts secrets and validates the result. A missing file is not an error:
// defaults plus environment are used.
func Load(path string) (*Config, error) {
	if err := LoadDotenv(".env"); err != nil {
		return nil, err
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: the main file takes precedence over includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("THESEARCH_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

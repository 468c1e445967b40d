package config

import (
	"fmt"
	"net/url"
	"strings"

	"thesearch/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets callers match validation failures with errors.Is(err, domain.ErrConfiguration).
func (v *ValidationError) Unwrap() error { return domain.ErrConfiguration }

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateSearch(cfg, ve)
	validateLLM(cfg, ve)
	validateRelated(cfg, ve)
	validateStore(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	if s.Addr == "" {
		ve.Add("server.addr is required")
	}
	if s.MaxConcurrency <= 0 {
		ve.Add("server.max_concurrency must be > 0")
	}
	if s.RateLimit.Enabled && s.RateLimit.PerMinute <= 0 {
		ve.Add("server.rate_limit.per_minute must be > 0 when rate limiting is enabled")
	}
	if s.MCP.Enabled && !strings.HasPrefix(s.MCP.Path, "/") {
		ve.Add("server.mcp.path must start with /")
	}
}

func validateSearch(cfg *Config, ve *ValidationError) {
	s := cfg.Search
	if s.Timeout <= 0 {
		ve.Add("search.timeout must be > 0")
	}
	switch s.Backend {
	case domain.BackendGoogle:
		if s.Google.APIKey == "" {
			ve.Add("GOOGLE_SEARCH_API_KEY is required for the GOOGLE backend")
		}
		if s.Google.CX == "" {
			ve.Add("GOOGLE_SEARCH_CX is required for the GOOGLE backend")
		}
	case domain.BackendSerper:
		if s.Serper.APIKey == "" {
			ve.Add("SERPER_SEARCH_API_KEY is required for the SERPER backend")
		}
	case domain.BackendBing:
		if s.Bing.SubscriptionKey == "" {
			ve.Add("BING_SEARCH_V7_SUBSCRIPTION_KEY is required for the BING backend")
		}
	case domain.BackendSearXNG:
		if _, err := url.ParseRequestURI(s.SearXNG.URL); err != nil {
			ve.Add("SEARXNG_URL must be a valid URL for the SEARXNG backend")
		}
	case domain.BackendDuckDuckGo:
	default:
		ve.Add("SEARCH_BACKEND %q is not one of GOOGLE, SERPER, DUCKDUCKGO, BING, SEARXNG", s.Backend)
	}
	if s.Cache.Size < 0 {
		ve.Add("search.cache.size must be >= 0")
	}
}

func validateLLM(cfg *Config, ve *ValidationError) {
	l := cfg.LLM
	p, ok := l.Provider()
	if !ok {
		ve.Add("CLIENT %q is not one of OPENAI, TOGETHER, HF_TGI, OLLAMA", l.Client)
		return
	}

	switch l.Client {
	case ClientOpenAI:
		if p.APIKey == "" {
			ve.Add("OPENAI_API_KEY is required for the OPENAI client")
		}
		if p.Model == "" {
			ve.Add("OPENAI_LLM is required for the OPENAI client")
		}
	case ClientTogether:
		if p.APIKey == "" {
			ve.Add("TOGETHER_API_KEY is required for the TOGETHER client")
		}
		if p.Model == "" {
			ve.Add("TOGETHER_LLM is required for the TOGETHER client")
		}
	case ClientHFTGI:
		if p.BaseURL == "" {
			ve.Add("HF_TGI_HOST is required for the HF_TGI client")
		}
		if p.Model == "" {
			ve.Add("HF_TGI_LLM is required for the HF_TGI client")
		}
	case ClientOllama:
		if p.Model == "" {
			ve.Add("OLLAMA_LLM is required for the OLLAMA client")
		}
	}
	if p.BaseURL != "" {
		if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
			ve.Add("llm base url %q is invalid", p.BaseURL)
		}
	}
	if l.MaxTokens <= 0 {
		ve.Add("llm.max_tokens must be > 0")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		ve.Add("llm.temperature must be within [0, 2]")
	}
	if l.ContextTokenBudget < 0 {
		ve.Add("llm.context_token_budget must be >= 0")
	}
}

func validateRelated(cfg *Config, ve *ValidationError) {
	r := cfg.Related
	if !r.Enabled {
		return
	}
	if r.MaxTokens <= 0 {
		ve.Add("related.max_tokens must be > 0")
	}
	if r.Timeout <= 0 {
		ve.Add("related.timeout must be > 0")
	}
	if r.WaitTimeout <= 0 {
		ve.Add("related.wait_timeout must be > 0")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	s := cfg.Store
	switch s.Backend {
	case "", "none":
	case "memory":
		if s.Size <= 0 {
			ve.Add("store.size must be > 0 for the memory store")
		}
	case "redis":
		if s.Redis.Addr == "" {
			ve.Add("store.redis.addr is required for the redis store")
		}
	case "sqlite":
		if s.SQLite.Path == "" {
			ve.Add("store.sqlite.path is required for the sqlite store")
		}
	default:
		ve.Add("store.backend %q is not one of none, memory, redis, sqlite", s.Backend)
	}
	if s.TTL < 0 {
		ve.Add("store.ttl must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	t := cfg.Tracer
	if !t.Enabled {
		return
	}
	switch t.Exporter {
	case "", "noop", "stdout":
	case "otlp":
		if t.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the otlp exporter")
		}
	default:
		ve.Add("tracer.exporter %q is not one of noop, stdout, otlp", t.Exporter)
	}
}

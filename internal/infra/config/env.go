package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv loads KEY=value pairs from path into the process environment,
// overriding variables that are already set. A missing file is ignored.
func LoadDotenv(path string) error {
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides maps environment variables to config fields. The
// historical variable names (SEARCH_BACKEND, CLIENT, OPENAI_API_KEY, ...) are
// honored alongside THESEARCH_* names for settings that never had one.
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Search.Backend, "SEARCH_BACKEND")
	setString(&cfg.Search.Google.APIKey, "GOOGLE_SEARCH_API_KEY")
	setString(&cfg.Search.Google.CX, "GOOGLE_SEARCH_CX")
	setString(&cfg.Search.Serper.APIKey, "SERPER_SEARCH_API_KEY")
	setString(&cfg.Search.Bing.SubscriptionKey, "BING_SEARCH_V7_SUBSCRIPTION_KEY")
	setString(&cfg.Search.SearXNG.URL, "SEARXNG_URL")
	setDuration(&cfg.Search.Timeout, "THESEARCH_SEARCH_TIMEOUT")
	cfg.Search.Backend = strings.ToUpper(strings.TrimSpace(cfg.Search.Backend))

	setString(&cfg.LLM.Client, "CLIENT")
	cfg.LLM.Client = strings.ToUpper(strings.TrimSpace(cfg.LLM.Client))
	setString(&cfg.LLM.OpenAI.Model, "OPENAI_LLM")
	setString(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.Together.Model, "TOGETHER_LLM")
	setString(&cfg.LLM.Together.BaseURL, "TOGETHER_ENDPOINT")
	setString(&cfg.LLM.Together.APIKey, "TOGETHER_API_KEY")
	setString(&cfg.LLM.HFTGI.BaseURL, "HF_TGI_HOST")
	setString(&cfg.LLM.HFTGI.Model, "HF_TGI_LLM")
	setString(&cfg.LLM.HFTGI.APIKey, "HF_TGI_API_KEY")
	setString(&cfg.LLM.Ollama.BaseURL, "OLLAMA_HOST")
	setString(&cfg.LLM.Ollama.Model, "OLLAMA_LLM")
	setInt(&cfg.LLM.ContextTokenBudget, "THESEARCH_CONTEXT_TOKEN_BUDGET")
	setBool(&cfg.LLM.UseStopWords, "THESEARCH_USE_STOP_WORDS")
	setBool(&cfg.LLM.CircuitBreaker.Enabled, "THESEARCH_CIRCUIT_BREAKER")

	setBool(&cfg.Related.Enabled, "RELATED_QUESTIONS")
	setDuration(&cfg.Related.WaitTimeout, "THESEARCH_RELATED_WAIT_TIMEOUT")

	setInt(&cfg.Server.MaxConcurrency, "HANDLER_MAX_CONCURRENCY")
	setString(&cfg.Server.Addr, "THESEARCH_ADDR")
	setString(&cfg.Server.UIDir, "THESEARCH_UI_DIR")
	setBool(&cfg.Server.RateLimit.Enabled, "THESEARCH_RATE_LIMIT")
	setBool(&cfg.Server.WebSocket, "THESEARCH_WEBSOCKET")
	setBool(&cfg.Server.MCP.Enabled, "THESEARCH_MCP")
	if v := os.Getenv("THESEARCH_TRUSTED_PROXIES"); v != "" {
		cfg.Server.RateLimit.TrustedProxies = splitAndTrim(v, ",")
	}

	setString(&cfg.Store.Backend, "THESEARCH_STORE")
	setDuration(&cfg.Store.TTL, "THESEARCH_STORE_TTL")
	setString(&cfg.Store.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Store.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Store.SQLite.Path, "THESEARCH_SQLITE_PATH")

	setString(&cfg.Logger.Level, "THESEARCH_LOGGER_LEVEL")
	setString(&cfg.Logger.Format, "THESEARCH_LOGGER_FORMAT")
	setBool(&cfg.Tracer.Enabled, "THESEARCH_TRACER_ENABLED")
	setString(&cfg.Tracer.Exporter, "THESEARCH_TRACER_EXPORTER")
	setString(&cfg.Tracer.Endpoint, "THESEARCH_TRACER_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Package integration holds opt-in tests against live search and LLM
// APIs. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"os"
	"testing"
	"time"
)

// Config holds integration test configuration from environment
type Config struct {
	OpenAIKey   string
	OpenAIModel string
	SerperKey   string
	GoogleKey   string
	GoogleCX    string
	BingKey     string
	OllamaHost  string
	OllamaModel string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	model := os.Getenv("OPENAI_LLM")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Config{
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: model,
		SerperKey:   os.Getenv("SERPER_SEARCH_API_KEY"),
		GoogleKey:   os.Getenv("GOOGLE_SEARCH_API_KEY"),
		GoogleCX:    os.Getenv("GOOGLE_SEARCH_CX"),
		BingKey:     os.Getenv("BING_SEARCH_V7_SUBSCRIPTION_KEY"),
		OllamaHost:  os.Getenv("OLLAMA_HOST"),
		OllamaModel: os.Getenv("OLLAMA_LLM"),
		TestTimeout: 90 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoKey skips the test if the required credential is not set
func SkipIfNoKey(t *testing.T, value, env string) {
	t.Helper()
	if value == "" {
		t.Skipf("Skipping integration test: %s not set", env)
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

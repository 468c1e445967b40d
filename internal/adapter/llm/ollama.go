package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// Compile-time interface assertions.
var (
	_ domain.LLMProvider          = (*OllamaProvider)(nil)
	_ domain.StreamingLLMProvider = (*OllamaProvider)(nil)
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaProvider talks to Ollama's OpenAI-compatible /v1 endpoint for chat
// and to the native API for model listing and health checks.
type OllamaProvider struct {
	inner   *OpenAIProvider
	baseURL string // native Ollama API base (without /v1)
	client  *http.Client
	logger  *slog.Logger
}

// OllamaModel describes a locally available Ollama model.
type OllamaModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// NewOllamaProvider accepts a base URL with or without the /v1 suffix.
func NewOllamaProvider(cfg config.ProviderConfig, client *http.Client, logger *slog.Logger) *OllamaProvider {
	baseURL := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}

	oaiCfg := cfg
	oaiCfg.BaseURL = baseURL + "/v1"
	oaiCfg.APIKey = "" // Ollama ignores credentials

	return &OllamaProvider{
		inner:   NewOpenAIProvider("ollama", oaiCfg, client, logger),
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *OllamaProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return p.inner.Chat(ctx, req)
}

// ChatStream implements domain.StreamingLLMProvider.
func (p *OllamaProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	return p.inner.ChatStream(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *OllamaProvider) Name() string { return p.inner.Name() }

// Model returns the configured model.
func (p *OllamaProvider) Model() string { return p.inner.Model() }

// ListModels returns the locally available Ollama models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]OllamaModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", domain.ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(httpResp.StatusCode, body)
	}

	var resp struct {
		Models []OllamaModel `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp.Models, nil
}

// HasModel reports whether the configured model has been pulled.
// Names without a tag match any tag.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	models, err := p.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := p.inner.Model()
	for _, m := range models {
		if m.Name == want || strings.TrimSuffix(m.Name, ":latest") == want {
			return true, nil
		}
	}
	return false, nil
}

// IsHealthy checks if the Ollama server is reachable.
func (p *OllamaProvider) IsHealthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return false
	}
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	httpResp.Body.Close()
	return httpResp.StatusCode == http.StatusOK
}

// Warmup loads the configured model so the first query does not pay for it.
func (p *OllamaProvider) Warmup(ctx context.Context) error {
	if !p.IsHealthy(ctx) {
		return fmt.Errorf("%w: ollama server not reachable at %s", domain.ErrProviderUnavailable, p.baseURL)
	}

	model := p.inner.Model()
	p.logger.Info("warming up ollama model", "model", model, "base_url", p.baseURL)

	payload, _ := json.Marshal(map[string]string{"model": model, "keep_alive": "5m"})
	httpResp, err := doStreamRequest(ctx, p.client, p.baseURL+"/api/generate", payload, nil)
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	p.logger.Info("ollama model warmed up", "model", model)
	return nil
}

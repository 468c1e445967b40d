package llm

import (
	"fmt"
	"log/slog"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// NewProvider builds the chat completion client selected by cfg.Client.
// One pooled *http.Client is created here and shared by every request
// for the life of the process.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) (domain.StreamingLLMProvider, error) {
	pc, ok := cfg.Provider()
	if !ok {
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrConfiguration,
			fmt.Sprintf("unknown CLIENT %q", cfg.Client))
	}
	client := NewHTTPClient(pc)

	var provider domain.StreamingLLMProvider
	switch cfg.Client {
	case config.ClientOpenAI:
		provider = NewOpenAIProvider("openai", pc, client, logger)
	case config.ClientTogether:
		provider = NewOpenAIProvider("together", pc, client, logger)
	case config.ClientHFTGI:
		provider = NewOpenAIProvider("hf_tgi", pc, client, logger)
	case config.ClientOllama:
		provider = NewOllamaProvider(pc, client, logger)
	}

	logger.Info("llm client ready",
		"client", cfg.Client,
		"model", pc.Model,
		"connect_timeout", pc.Timeouts.Connect,
		"read_timeout", pc.Timeouts.Read,
	)

	if cfg.CircuitBreaker.Enabled {
		provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
	}
	return provider, nil
}

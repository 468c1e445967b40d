package rag

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"

	"thesearch/internal/domain"
)

// TokenCounter counts tokens the way the completion model will.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter approximates four bytes per token.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int { return (len(text) + 3) / 4 }

// loadEncoding resolves the encoding for model, falling back to
// cl100k_base. tiktoken-go downloads and caches the BPE file on first use
// with no timeout, so callers must not wait on it from a request.
var loadEncoding = func(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	return enc, err
}

// tiktokenCounter starts loading its encoding on first use and estimates
// until the encoding is ready.
type tiktokenCounter struct {
	model  string
	logger *slog.Logger

	once   sync.Once
	loaded chan struct{}
	enc    atomic.Pointer[tiktoken.Tiktoken]
}

// NewTokenCounter returns a counter for model, falling back to cl100k_base
// for unknown models and to EstimateCounter while no encoding is loaded.
func NewTokenCounter(model string, logger *slog.Logger) TokenCounter {
	return &tiktokenCounter{model: model, logger: logger, loaded: make(chan struct{})}
}

func (c *tiktokenCounter) load() {
	defer close(c.loaded)
	enc, err := loadEncoding(c.model)
	if err != nil {
		c.logger.Warn("tiktoken unavailable, estimating token counts", "model", c.model, "error", err)
		return
	}
	c.enc.Store(enc)
	c.logger.Debug("tiktoken encoding loaded", "model", c.model)
}

// Count never blocks on the encoding download.
func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() { go c.load() })
	enc := c.enc.Load()
	if enc == nil {
		return EstimateCounter{}.Count(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// FitContexts keeps contexts in order while the rendered answer prompt stays
// within budget tokens. The first context is always kept. A non-positive
// budget keeps everything.
func FitContexts(contexts []domain.SearchResult, budget int, counter TokenCounter) []domain.SearchResult {
	if budget <= 0 || len(contexts) <= 1 {
		return contexts
	}

	used := counter.Count(AnswerPrompt(nil))
	for i, c := range contexts {
		cost := counter.Count(citedContext(i, c))
		if i > 0 {
			cost += counter.Count("\n\n")
		}
		if i > 0 && used+cost > budget {
			return contexts[:i]
		}
		used += cost
	}
	return contexts
}

// Package search implements the web search backends that supply context
// snippets for answers.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
	"thesearch/internal/infra/tracer"
)

const (
	maxSearchBodySize = 2 * 1024 * 1024 // DuckDuckGo pages run well past 512KB
	maxErrorDetail    = 512

	defaultSearchTimeout = 100 * time.Second
)

// New builds the backend selected by cfg.Backend, wrapped in a TTL cache
// when cfg.Cache.Size is positive.
func New(cfg config.SearchConfig, logger *slog.Logger) (domain.SearchBackend, error) {
	client := newHTTPClient(cfg.Timeout)

	var backend domain.SearchBackend
	switch strings.ToUpper(cfg.Backend) {
	case domain.BackendGoogle:
		backend = NewGoogle(cfg.Google, client, logger)
	case domain.BackendSerper:
		backend = NewSerper(cfg.Serper, client, logger)
	case domain.BackendBing:
		backend = NewBing(cfg.Bing, client, logger)
	case domain.BackendDuckDuckGo:
		backend = NewDuckDuckGo(cfg.DuckDuckGo, client, logger)
	case domain.BackendSearXNG:
		backend = NewSearXNG(cfg.SearXNG, client, logger)
	default:
		return nil, domain.NewDomainError("search.New", domain.ErrConfiguration,
			fmt.Sprintf("unknown SEARCH_BACKEND %q", cfg.Backend))
	}

	if cfg.Cache.Size > 0 {
		backend = NewCached(backend, cfg.Cache.Size, cfg.Cache.TTL)
	}
	logger.Info("search backend ready", "backend", backend.Name(), "timeout", cfg.Timeout)
	return backend, nil
}

// newHTTPClient returns the client shared by one backend. Search responses are
// small and never streamed, so a whole-request timeout is appropriate here.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return &http.Client{Timeout: timeout}
}

// do sends req and returns the body of a 2xx response. Anything else becomes
// a provider error tagged with the backend name.
func do(ctx context.Context, client *http.Client, backend string, req *http.Request) ([]byte, error) {
	ctx, span := tracer.StartSpan(ctx, "search."+backend)
	defer span.End()

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, providerError(backend, "request", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, providerError(backend, "read response", err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(body)
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		err := providerError(backend, "status", fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail))
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return body, nil
}

func providerError(backend, what, detail string) error {
	return domain.NewSubSystemError(backend, "search."+backend, domain.ErrSearchProvider, what+": "+detail)
}

// keepUsable drops records without a url or snippet and caps the list at
// domain.ReferenceCount. The result is never nil.
func keepUsable(results []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, min(len(results), domain.ReferenceCount))
	for _, r := range results {
		if len(out) == domain.ReferenceCount {
			break
		}
		r.URL = strings.TrimSpace(r.URL)
		r.Snippet = strings.TrimSpace(r.Snippet)
		if r.URL == "" || r.Snippet == "" {
			continue
		}
		if r.Name = strings.TrimSpace(r.Name); r.Name == "" {
			r.Name = r.URL
		}
		out = append(out, r)
	}
	return out
}

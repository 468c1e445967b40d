package search

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// SerperEndpoint is the Serper Google search API.
const SerperEndpoint = "https://google.serper.dev/search"

// Serper searches Google through serper.dev.
type Serper struct {
	client   *http.Client
	endpoint string
	key      string
	logger   *slog.Logger
}

// NewSerper creates a Serper backend.
func NewSerper(cfg config.SerperConfig, client *http.Client, logger *slog.Logger) *Serper {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = SerperEndpoint
	}
	return &Serper{client: client, endpoint: endpoint, key: cfg.APIKey, logger: logger}
}

func (s *Serper) Name() string { return "serper" }

// serperNum rounds ReferenceCount up to the page size Serper bills in.
func serperNum() int {
	if domain.ReferenceCount%10 == 0 {
		return domain.ReferenceCount
	}
	return (domain.ReferenceCount/10 + 1) * 10
}

func (s *Serper) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": serperNum()})
	if err != nil {
		return nil, providerError(s.Name(), "marshal request", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, providerError(s.Name(), "create request", err.Error())
	}
	req.Header.Set("X-API-KEY", s.key)
	req.Header.Set("Content-Type", "application/json")

	body, err := do(ctx, s.client, s.Name(), req)
	if err != nil {
		s.logger.Error("serper search failed", "error", err)
		return nil, err
	}

	var resp struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providerError(s.Name(), "parse response", err.Error())
	}

	results := make([]domain.SearchResult, 0, len(resp.Organic))
	for _, o := range resp.Organic {
		results = append(results, domain.SearchResult{Name: o.Title, URL: o.Link, Snippet: o.Snippet})
	}
	results = keepUsable(results)
	s.logger.Debug("serper search completed", "query", query, "results", len(results))
	return results, nil
}

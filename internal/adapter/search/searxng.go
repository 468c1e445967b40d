package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
	NumberOfResults float64 `json:"number_of_results"`
}

// SearXNG searches the web via a SearXNG instance with the JSON format enabled.
type SearXNG struct {
	client      *http.Client
	instanceURL string
	logger      *slog.Logger
}

// NewSearXNG creates a search backend backed by a SearXNG instance.
func NewSearXNG(cfg config.SearXNGConfig, client *http.Client, logger *slog.Logger) *SearXNG {
	return &SearXNG{
		client:      client,
		instanceURL: strings.TrimRight(cfg.URL, "/"),
		logger:      logger,
	}
}

func (b *SearXNG) Name() string { return "searxng" }

func (b *SearXNG) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.instanceURL+"/search", nil)
	if err != nil {
		return nil, providerError(b.Name(), "create request", err.Error())
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	body, err := do(ctx, b.client, b.Name(), req)
	if err != nil {
		b.logger.Error("searxng search failed", "error", err)
		return nil, err
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, providerError(b.Name(), "parse response", err.Error())
	}

	results := make([]domain.SearchResult, 0, len(searxResp.Results))
	for _, r := range searxResp.Results {
		results = append(results, domain.SearchResult{Name: r.Title, URL: r.URL, Snippet: r.Content})
	}
	results = keepUsable(results)
	b.logger.Debug("searxng search completed", "query", query, "results", len(results))
	return results, nil
}

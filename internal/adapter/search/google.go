package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// GoogleEndpoint is the Google Custom Search JSON API.
const GoogleEndpoint = "https://customsearch.googleapis.com/customsearch/v1"

// Google searches with a Google Programmable Search Engine.
type Google struct {
	client   *http.Client
	endpoint string
	key      string
	cx       string
	logger   *slog.Logger
}

// NewGoogle creates a Google Custom Search backend.
func NewGoogle(cfg config.GoogleConfig, client *http.Client, logger *slog.Logger) *Google {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = GoogleEndpoint
	}
	return &Google{client: client, endpoint: endpoint, key: cfg.APIKey, cx: cfg.CX, logger: logger}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("key", g.key)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(domain.ReferenceCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, providerError(g.Name(), "create request", err.Error())
	}

	body, err := do(ctx, g.client, g.Name(), req)
	if err != nil {
		g.logger.Error("google search failed", "error", err)
		return nil, err
	}

	var resp struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providerError(g.Name(), "parse response", err.Error())
	}

	results := make([]domain.SearchResult, 0, len(resp.Items))
	for _, it := range resp.Items {
		results = append(results, domain.SearchResult{Name: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	results = keepUsable(results)
	g.logger.Debug("google search completed", "query", query, "results", len(results))
	return results, nil
}

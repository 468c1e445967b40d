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

// BingEndpoint is the Bing Web Search v7 API.
const BingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// Bing searches with the Bing Web Search v7 API.
type Bing struct {
	client   *http.Client
	endpoint string
	key      string
	market   string
	logger   *slog.Logger
}

// NewBing creates a Bing backend.
func NewBing(cfg config.BingConfig, client *http.Client, logger *slog.Logger) *Bing {
	b := &Bing{
		client:   client,
		endpoint: cfg.Endpoint,
		key:      cfg.SubscriptionKey,
		market:   cfg.Market,
		logger:   logger,
	}
	if b.endpoint == "" {
		b.endpoint = BingEndpoint
	}
	if b.market == "" {
		b.market = "en-US"
	}
	return b
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("mkt", b.market)
	params.Set("count", strconv.Itoa(domain.ReferenceCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, providerError(b.Name(), "create request", err.Error())
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.key)

	body, err := do(ctx, b.client, b.Name(), req)
	if err != nil {
		b.logger.Error("bing search failed", "error", err)
		return nil, err
	}

	var resp struct {
		WebPages *struct {
			Value []domain.SearchResult `json:"value"`
		} `json:"webPages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providerError(b.Name(), "parse response", err.Error())
	}
	if resp.WebPages == nil {
		b.logger.Warn("bing response has no webPages", "query", query)
		return []domain.SearchResult{}, nil
	}

	results := keepUsable(resp.WebPages.Value)
	b.logger.Debug("bing search completed", "query", query, "results", len(results))
	return results, nil
}

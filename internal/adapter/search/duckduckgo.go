package search

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// DuckDuckGoEndpoint is the JavaScript-free DuckDuckGo results page.
const DuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// ddgUserAgent is sent because the HTML endpoint rejects empty agents.
const ddgUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no key.
// Unlike the API backends it never fails a query: errors are logged and
// an empty result list is returned.
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
	region   string
	logger   *slog.Logger
}

// NewDuckDuckGo creates a DuckDuckGo backend.
func NewDuckDuckGo(cfg config.DuckDuckGoConfig, client *http.Client, logger *slog.Logger) *DuckDuckGo {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DuckDuckGoEndpoint
	}
	return &DuckDuckGo{client: client, endpoint: endpoint, region: cfg.Region, logger: logger}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	form := url.Values{}
	form.Set("q", query)
	if d.region != "" {
		form.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		d.logger.Error("duckduckgo search failed", "error", err)
		return []domain.SearchResult{}, nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", ddgUserAgent)

	body, err := do(ctx, d.client, d.Name(), req)
	if err != nil {
		d.logger.Error("duckduckgo search failed", "error", err)
		return []domain.SearchResult{}, nil
	}

	results, err := parseDuckDuckGo(body)
	if err != nil {
		d.logger.Error("duckduckgo parse failed", "error", err)
		return []domain.SearchResult{}, nil
	}
	results = keepUsable(results)
	d.logger.Debug("duckduckgo search completed", "query", query, "results", len(results))
	return results, nil
}

// parseDuckDuckGo extracts organic results from a results page, skipping ads.
func parseDuckDuckGo(page []byte) ([]domain.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		results = append(results, domain.SearchResult{
			Name:    strings.TrimSpace(link.Text()),
			URL:     resolveDuckDuckGoLink(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return results, nil
}

// resolveDuckDuckGoLink unwraps //duckduckgo.com/l/?uddg=<target> redirects.
func resolveDuckDuckGoLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Host == "" {
		// Relative links point back into DuckDuckGo itself.
		return ""
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

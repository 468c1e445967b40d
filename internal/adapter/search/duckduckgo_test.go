package search

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

const ddgPage = `<!DOCTYPE html>
<html><body><div id="links" class="results">
  <div class="result results_links results_links_deep result--ad">
    <h2 class="result__title"><a class="result__a" href="https://duckduckgo.com/y.js?ad_domain=shop.example">Buy now</a></h2>
    <a class="result__snippet" href="#">Sponsored snippet</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FParis&amp;rut=abc">Paris - Wikipedia</a></h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=x">Paris is the <b>capital</b> of France.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title"><a rel="nofollow" class="result__a" href="https://www.britannica.com/place/Paris">Paris | Britannica</a></h2>
    <a class="result__snippet">Paris, city and capital of France.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fnosnippet.example">No snippet</a></h2>
  </div>
</div></body></html>`

func TestParseDuckDuckGo(t *testing.T) {
	results, err := parseDuckDuckGo([]byte(ddgPage))
	require.NoError(t, err)
	results = keepUsable(results)

	require.Len(t, results, 2)
	assert.Equal(t, domain.SearchResult{
		Name:    "Paris - Wikipedia",
		URL:     "https://en.wikipedia.org/wiki/Paris",
		Snippet: "Paris is the capital of France.",
	}, results[0])
	assert.Equal(t, "https://www.britannica.com/place/Paris", results[1].URL)
}

func TestResolveDuckDuckGoLink(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc&rut=1", "https://go.dev/doc"},
		{"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fa.b", "https://a.b"},
		{"//example.com/page", "https://example.com/page"},
		{"https://example.com/page", "https://example.com/page"},
		{"/html/?q=next", ""},
		{"//duckduckgo.com/l/?rut=1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDuckDuckGoLink(tt.href))
		})
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "capital of France", r.PostForm.Get("q"))
		assert.Equal(t, "wt-wt", r.PostForm.Get("kl"))
		assert.NotEmpty(t, r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, ddgPage)
	})

	d := NewDuckDuckGo(config.DuckDuckGoConfig{Endpoint: srv.URL, Region: "wt-wt"}, srv.Client(), newTestLogger())
	results, err := d.Search(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assertUsable(t, results)
}

func TestDuckDuckGoNeverFails(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		})
		d := NewDuckDuckGo(config.DuckDuckGoConfig{Endpoint: srv.URL}, srv.Client(), newTestLogger())

		results, err := d.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("transport", func(t *testing.T) {
		d := NewDuckDuckGo(config.DuckDuckGoConfig{Endpoint: closedURL(t)}, &http.Client{Timeout: time.Second}, newTestLogger())

		results, err := d.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

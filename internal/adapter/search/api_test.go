package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

func TestBingSearch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bing-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "en-US", r.URL.Query().Get("mkt"))
		io.WriteString(w, `{"webPages":{"value":[
			{"name":"Go","url":"https://go.dev","snippet":"The Go language","dateLastCrawled":"x"},
			{"name":"Empty","url":"https://empty","snippet":""}
		]}}`)
	})

	b := NewBing(config.BingConfig{SubscriptionKey: "bing-key", Endpoint: srv.URL}, srv.Client(), newTestLogger())
	results, err := b.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Name: "Go", URL: "https://go.dev", Snippet: "The Go language"}}, results)
}

func TestBingMissingWebPages(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"_type":"SearchResponse"}`)
	})
	b := NewBing(config.BingConfig{Endpoint: srv.URL}, srv.Client(), newTestLogger())

	results, err := b.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestGoogleSearch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "g-key", q.Get("key"))
		assert.Equal(t, "g-cx", q.Get("cx"))
		assert.Equal(t, "8", q.Get("num"))

		items := make([]map[string]string, 0, 10)
		for range 10 {
			items = append(items, map[string]string{"title": "T", "link": "https://t", "snippet": "S"})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	g := NewGoogle(config.GoogleConfig{APIKey: "g-key", CX: "g-cx", Endpoint: srv.URL}, srv.Client(), newTestLogger())
	results, err := g.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, domain.ReferenceCount)
	assertUsable(t, results)
	assert.Equal(t, domain.SearchResult{Name: "T", URL: "https://t", Snippet: "S"}, results[0])
}

func TestGoogleMissingItems(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"searchInformation":{"totalResults":"0"}}`)
	})
	g := NewGoogle(config.GoogleConfig{Endpoint: srv.URL}, srv.Client(), newTestLogger())

	results, err := g.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSerperSearch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "s-key", r.Header.Get("X-API-KEY"))
		var body struct {
			Q   string `json:"q"`
			Num int    `json:"num"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "who", body.Q)
		assert.Equal(t, 10, body.Num)

		io.WriteString(w, `{"organic":[{"title":"A","link":"https://a","snippet":"sa","position":1}]}`)
	})

	s := NewSerper(config.SerperConfig{APIKey: "s-key", Endpoint: srv.URL}, srv.Client(), newTestLogger())
	results, err := s.Search(context.Background(), "who")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Name: "A", URL: "https://a", Snippet: "sa"}}, results)
}

func TestAPIBackendsFailOnStatus(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})
	logger := newTestLogger()
	backends := []domain.SearchBackend{
		NewBing(config.BingConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewGoogle(config.GoogleConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewSerper(config.SerperConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewSearXNG(config.SearXNGConfig{URL: srv.URL}, srv.Client(), logger),
	}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			results, err := b.Search(context.Background(), "q")
			assert.Nil(t, results)
			assert.ErrorIs(t, err, domain.ErrSearchProvider)
			assert.Contains(t, err.Error(), "403")
		})
	}
}

func TestAPIBackendsFailOnTransport(t *testing.T) {
	dead := closedURL(t)
	logger := newTestLogger()
	client := &http.Client{}
	backends := []domain.SearchBackend{
		NewBing(config.BingConfig{Endpoint: dead}, client, logger),
		NewGoogle(config.GoogleConfig{Endpoint: dead}, client, logger),
		NewSerper(config.SerperConfig{Endpoint: dead}, client, logger),
		NewSearXNG(config.SearXNGConfig{URL: dead}, client, logger),
	}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := b.Search(context.Background(), "q")
			assert.ErrorIs(t, err, domain.ErrSearchProvider)
		})
	}
}

func TestSearXNGSearch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "golang testing", r.URL.Query().Get("q"))
		io.WriteString(w, `{"results":[{"title":"Go Testing","url":"https://go.dev/testing","content":"Testing in Go","engine":"ddg"}],"number_of_results":1}`)
	})

	b := NewSearXNG(config.SearXNGConfig{URL: srv.URL + "/"}, srv.Client(), newTestLogger())
	assert.Equal(t, srv.URL, b.instanceURL)

	results, err := b.Search(context.Background(), "golang testing")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Name: "Go Testing", URL: "https://go.dev/testing", Snippet: "Testing in Go"}}, results)
}

func TestAPIBackendsFailOnMalformedBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>captcha</html>")
	})
	logger := newTestLogger()
	backends := []domain.SearchBackend{
		NewBing(config.BingConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewGoogle(config.GoogleConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewSerper(config.SerperConfig{Endpoint: srv.URL}, srv.Client(), logger),
		NewSearXNG(config.SearXNGConfig{URL: srv.URL}, srv.Client(), logger),
	}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			results, err := b.Search(context.Background(), "q")
			assert.Nil(t, results)
			assert.ErrorIs(t, err, domain.ErrSearchProvider)
			assert.Contains(t, err.Error(), "parse response")
		})
	}
}

func TestAPIBackendsFailOnBadEndpoint(t *testing.T) {
	const bad = "://no-scheme"
	logger := newTestLogger()
	client := &http.Client{}
	backends := []domain.SearchBackend{
		NewBing(config.BingConfig{Endpoint: bad}, client, logger),
		NewGoogle(config.GoogleConfig{Endpoint: bad}, client, logger),
		NewSerper(config.SerperConfig{Endpoint: bad}, client, logger),
		NewSearXNG(config.SearXNGConfig{URL: bad}, client, logger),
	}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := b.Search(context.Background(), "q")
			assert.ErrorIs(t, err, domain.ErrSearchProvider)
			var de *domain.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, b.Name(), de.SubSystem)
			assert.Contains(t, de.Detail, "create request")
		})
	}
}

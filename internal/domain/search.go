package domain

import "context"

// ReferenceCount caps the number of search results used as context.
const ReferenceCount = 8

// Search backend identifiers, as accepted by SEARCH_BACKEND.
const (
	BackendGoogle     = "GOOGLE"
	BackendSerper     = "SERPER"
	BackendDuckDuckGo = "DUCKDUCKGO"
	BackendBing       = "BING"
	BackendSearXNG    = "SEARXNG"
)

// SearchResult is one context snippet returned by a search backend.
type SearchResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchBackend fetches context snippets for a query.
type SearchBackend interface {
	// Search returns at most ReferenceCount results. A well-formed response
	// without results yields an empty slice and a nil error.
	Search(ctx context.Context, query string) ([]SearchResult, error)
	// Name returns the backend identifier (e.g. "google").
	Name() string
}

package search

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"thesearch/internal/domain"
)

// Cached memoizes successful searches per normalized query for a TTL.
// Errors and empty result lists are not cached.
type Cached struct {
	inner domain.SearchBackend
	lru   *expirable.LRU[string, []domain.SearchResult]
}

// NewCached wraps inner with an LRU of at most size queries.
func NewCached(inner domain.SearchBackend, size int, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		lru:   expirable.NewLRU[string, []domain.SearchResult](size, nil, ttl),
	}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if hit, ok := c.lru.Get(key); ok {
		return append([]domain.SearchResult(nil), hit...), nil
	}

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		c.lru.Add(key, append([]domain.SearchResult(nil), results...))
	}
	return results, nil
}

// Len reports the number of cached queries.
func (c *Cached) Len() int { return c.lru.Len() }

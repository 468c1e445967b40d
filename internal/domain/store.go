package domain

import (
	"context"
	"time"
)

// ResultStore keeps finished answer streams keyed by search uuid so a repeated
// request can be replayed without searching again.
type ResultStore interface {
	// Get returns the stored body, or an error wrapping ErrNotFound.
	Get(ctx context.Context, uuid string) ([]byte, error)
	// Put stores body under uuid for ttl. A zero ttl means no expiry.
	Put(ctx context.Context, uuid string, body []byte, ttl time.Duration) error
	Close() error
}

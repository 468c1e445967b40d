// Package store keeps finished answers keyed by search uuid so repeated
// requests can be replayed.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
)

// Backend names accepted by store.backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Purger is implemented by stores whose expired rows need explicit removal.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// New opens the configured store.
func New(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (domain.ResultStore, error) {
	var (
		s   domain.ResultStore
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		s = Noop{}
	case BackendMemory:
		s = NewMemory(cfg.Size, cfg.TTL)
	case BackendRedis:
		s, err = NewRedis(ctx, cfg.Redis)
	case BackendSQLite:
		s, err = NewSQLite(ctx, cfg.SQLite.Path)
	default:
		return nil, domain.NewDomainError("store.New", domain.ErrConfiguration,
			fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}
	logger.Info("result store ready", "backend", cfg.Backend, "ttl", cfg.TTL)
	return s, nil
}

// notFound builds the error every store returns for a missing uuid.
func notFound(op, uuid string) error {
	return domain.NewSubSystemError("store", op, domain.ErrNotFound, "search_uuid "+uuid)
}

func unavailable(op string, err error) error {
	return domain.NewSubSystemError("store", op, domain.ErrStoreUnavailable, err.Error())
}

// Noop stores nothing.
type Noop struct{}

func (Noop) Get(_ context.Context, uuid string) ([]byte, error) {
	return nil, notFound("store.noop.get", uuid)
}

func (Noop) Put(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Close() error { return nil }

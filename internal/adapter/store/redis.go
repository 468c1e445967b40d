package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"thesearch/internal/infra/config"
)

const defaultRedisPrefix = "thesearch:result:"

// Redis stores answers as plain string keys with a native expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to cfg.Addr and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable("store.redis.ping", fmt.Errorf("%s: %w", cfg.Addr, err))
	}
	return NewRedisWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(uuid string) string { return r.prefix + uuid }

func (r *Redis) Get(ctx context.Context, uuid string) ([]byte, error) {
	body, err := r.client.Get(ctx, r.key(uuid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("store.redis.get", uuid)
	}
	if err != nil {
		return nil, unavailable("store.redis.get", err)
	}
	return body, nil
}

// Put writes body with SET key value EX ttl. A zero ttl stores without expiry.
func (r *Redis) Put(ctx context.Context, uuid string, body []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(uuid), body, ttl).Err(); err != nil {
		return unavailable("store.redis.put", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("store.redis.ping", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

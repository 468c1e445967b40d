package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySize = 1000

// Memory is an in-process store bounded by entry count. Every entry shares
// the TTL given at construction; the per-call ttl of Put is ignored.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates a store holding at most size answers for ttl each.
// A zero ttl keeps entries until they are evicted by size.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, uuid string) ([]byte, error) {
	body, ok := m.lru.Get(uuid)
	if !ok {
		return nil, notFound("store.memory.get", uuid)
	}
	return body, nil
}

func (m *Memory) Put(_ context.Context, uuid string, body []byte, _ time.Duration) error {
	m.lru.Add(uuid, append([]byte(nil), body...))
	return nil
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

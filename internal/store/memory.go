package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
)

const defaultMemoryMB = 8

// Memory is an in-process store backed by freecache. Entries never expire but
// may be evicted when the cache is full, so it suits tests and ephemeral runs.
type Memory struct {
	cache *freecache.Cache
}

// NewMemory allocates a sizeMB megabyte cache (8 MB when sizeMB <= 0).
func NewMemory(sizeMB int) *Memory {
	if sizeMB <= 0 {
		sizeMB = defaultMemoryMB
	}
	return &Memory{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	val, err := m.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	if err := m.cache.Set([]byte(key), value, 0); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Del([]byte(key))
	return nil
}

func (m *Memory) Close() error {
	m.cache.Clear()
	return nil
}

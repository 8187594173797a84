package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryKV implements KV in process memory.
type MemoryKV struct {
	cache *gocache.Cache
}

// NewMemory creates an in-memory KV. Expired entries are swept every
// cleanupInterval; a non-positive interval disables sweeping (expired
// entries are still never returned).
func NewMemory(cleanupInterval time.Duration) *MemoryKV {
	return &MemoryKV{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get returns a copy of the stored value.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	val, found := m.cache.Get(key)
	if !found {
		return nil, nil
	}
	b := val.([]byte)
	return append([]byte(nil), b...), nil
}

// Set stores a copy of value.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, append([]byte(nil), value...), memoryTTL(ttl))
	return nil
}

// SetMany stores each entry.
func (m *MemoryKV) SetMany(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := m.Set(ctx, e.Key, e.Value, e.TTL); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (m *MemoryKV) Len() int {
	return m.cache.ItemCount()
}

// Close flushes the cache.
func (m *MemoryKV) Close() error {
	m.cache.Flush()
	return nil
}

func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

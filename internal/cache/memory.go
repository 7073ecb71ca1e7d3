package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	prefix  string
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryCache returns an in-process cache used when Redis is not
// configured, and in tests.
func NewMemoryCache(prefix string) Cache {
	return &memoryCache{entries: make(map[string]memoryEntry), prefix: prefix}
}

func (m *memoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return "", nil
	}
	return entry.value, nil
}

func (m *memoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.prefix, operation, key)
}

package cache

import (
	"context"
	"sync"
)

// MemoryBackend is a concurrency-safe in-memory Backend. Expired entries stay
// readable for stale-serve; they are only dropped under capacity pressure,
// oldest first.
type MemoryBackend struct {
	mu sync.RWMutex

	data map[string]Entry

	// maxEntries bounds the map size; <= 0 means unlimited.
	maxEntries int
}

// NewMemoryBackend creates a MemoryBackend with an optional entry cap.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	return &MemoryBackend{
		data:       make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.data[key] = entry
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryBackend) evictOldestLocked() {
	var oldestKey string
	first := true
	for key, entry := range m.data {
		if first || entry.StoredAt.Before(m.data[oldestKey].StoredAt) {
			oldestKey = key
			first = false
		}
	}
	if oldestKey != "" {
		delete(m.data, oldestKey)
	}
}

package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage is an in-process Storage with the same quota semantics as
// SQLiteStorage. Nothing survives the process.
type MemoryStorage struct {
	mu    sync.RWMutex
	data  map[string]string
	used  int64
	quota int64
}

// NewMemoryStorage creates an empty store. quotaBytes <= 0 disables the quota.
func NewMemoryStorage(quotaBytes int64) *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string), quota: quotaBytes}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	others := m.used
	if old, ok := m.data[key]; ok {
		others -= entrySize(key, old)
	}
	if !withinQuota(m.quota, others, key, value) {
		return fmt.Errorf("write of %d bytes to %q: %w", len(value), key, ErrQuotaExceeded)
	}
	m.data[key] = value
	m.used = others + entrySize(key, value)
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.data, key)
	}
	return nil
}

// Usage returns the number of bytes currently counted against the quota.
func (m *MemoryStorage) Usage(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used, nil
}

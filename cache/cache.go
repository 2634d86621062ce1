// Package cache defines the key-value cache used for upstream responses
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-value cache with per-key expiry
type Cache interface {
	// Get fetches the value for the key, if present and not expired
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value for the key, expiring after ttl (0 = never)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	expiresAt time.Time
	value     []byte
}

// Memory is an in-process Cache
type Memory struct {
	data map[string]entry
	now  func() time.Time

	mu sync.RWMutex
}

// NewMemory creates a new in-process cache
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()

		return nil, false, nil
	}

	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{
		value: append([]byte(nil), value...),
	}

	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()

	return nil
}

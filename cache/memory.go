package cache

import (
	"context"
	"time"

	"github.com/s0up4200/cinescope/metrics"
)

// DefaultMemorySize is used when no size is configured.
const DefaultMemorySize = 512

type memoryItem struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache backed by an LRU.
type Memory struct {
	lru *LRU
	now func() time.Time
}

// NewMemory creates an in-process cache holding at most size responses.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{lru: NewLRU(size), now: time.Now}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues(BackendMemory, "miss").Inc()
		return nil, false, nil
	}

	item := v.(memoryItem)
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		m.lru.Remove(key)
		metrics.CacheLookups.WithLabelValues(BackendMemory, "miss").Inc()
		return nil, false, nil
	}

	metrics.CacheLookups.WithLabelValues(BackendMemory, "hit").Inc()
	return item.value, true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.lru.Put(key, item)
	return nil
}

// Name implements Cache.
func (m *Memory) Name() string { return BackendMemory }

// Close implements Cache.
func (m *Memory) Close() error {
	m.lru.Clear()
	return nil
}

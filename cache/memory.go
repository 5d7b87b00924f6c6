package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache. Expired entries are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry), now: time.Now}
}

// Get returns the entry for key if present and unexpired. It tries a read
// lock first and only takes the write lock to evict.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if !e.Expired(m.now()) {
		return e, true, nil
	}

	m.mu.Lock()
	if cur, ok := m.entries[key]; ok && cur.Expired(m.now()) {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return Entry{}, false, nil
}

// Put stores a copy of value. A non-positive ttl keeps it until deleted.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := Entry{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

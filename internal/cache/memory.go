package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is a bounded TTL cache with LRU eviction. Reads and writes share
// one mutex; values are opaque.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
}

type memoryEntry struct {
	key       string
	value     any
	expiresAt time.Time
}

// NewMemory creates a cache holding at most maxSize entries, each living
// for ttl (zero ttl disables expiry).
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Memory{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached value and whether it was present and fresh.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if m.ttl > 0 && time.Now().After(entry.expiresAt) {
		m.order.Remove(el)
		delete(m.entries, key)
		return nil, false
	}
	m.order.MoveToFront(el)
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(m.ttl)
		m.order.MoveToFront(el)
		return
	}
	if len(m.entries) >= m.maxSize {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*memoryEntry).key)
		}
	}
	el := m.order.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(m.ttl),
	})
	m.entries[key] = el
}

// Len returns the number of live entries (including not-yet-reaped
// expired ones).
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

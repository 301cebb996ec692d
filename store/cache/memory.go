package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the in-memory cache tier: an LRU keyed by place id, holding the
// serialized payload together with its write timestamp.
type Memory struct {
	capacity int
	mu       sync.Mutex

	entries map[string]*memoryEntry
	order   *list.List // doubly linked list for LRU ordering
}

type memoryEntry struct {
	key       string
	payload   []byte
	writtenAt time.Time
	element   *list.Element
}

// NewMemory creates a new in-memory cache tier.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{
		capacity: capacity,
		entries:  make(map[string]*memoryEntry),
		order:    list.New(),
	}
}

// Get retrieves a payload and its write timestamp.
// Freshness is not judged here: the tiered cache owns the TTL contract.
func (m *Memory) Get(key string) ([]byte, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}

	m.order.MoveToFront(e.element)
	return e.payload, e.writtenAt, true
}

// Set stores a payload with its write timestamp.
func (m *Memory) Set(key string, payload []byte, writtenAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.payload = payload
		e.writtenAt = writtenAt
		m.order.MoveToFront(e.element)
		return
	}

	for len(m.entries) >= m.capacity {
		m.evictOldest()
	}

	e := &memoryEntry{
		key:       key,
		payload:   payload,
		writtenAt: writtenAt,
	}
	e.element = m.order.PushFront(e)
	m.entries[key] = e
}

// Delete removes a key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		m.removeEntry(e)
	}
}

// Size returns the number of entries.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	m.order.Init()
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (m *Memory) evictOldest() {
	oldest := m.order.Back()
	if oldest == nil {
		return
	}
	m.removeEntry(oldest.Value.(*memoryEntry))
}

// removeEntry removes an entry from the cache.
// Must be called with lock held.
func (m *Memory) removeEntry(e *memoryEntry) {
	m.order.Remove(e.element)
	delete(m.entries, e.key)
}

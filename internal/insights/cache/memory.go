// internal/insights/cache/memory.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultMaxEntries = 10000

type entry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry) live(now time.Time) bool {
	return now.Before(e.createdAt.Add(e.ttl))
}

// Stats is a point-in-time view of the memory store counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// MemoryStore is an in-process Store. Reads never take a lock; each write
// swaps in a new immutable entry. Insert order is tracked so the oldest
// entry is evicted once maxEntries is exceeded.
type MemoryStore struct {
	entries    sync.Map
	maxEntries int
	now        func() time.Time

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemoryStore creates a store bounded to maxEntries (DefaultMaxEntries when <= 0).
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		now:        time.Now,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}

	e := v.(*entry)
	if !e.live(m.now()) {
		if m.entries.CompareAndDelete(key, e) {
			m.forget(key)
		}
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Put stores a copy of value. A non-positive ttl stores nothing.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	e := &entry{
		value:     append([]byte(nil), value...),
		createdAt: m.now(),
		ttl:       ttl,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Store(key, e)
	if el, ok := m.index[key]; ok {
		m.order.MoveToBack(el)
	} else {
		m.index[key] = m.order.PushBack(key)
	}

	for m.order.Len() > m.maxEntries {
		oldest := m.order.Front()
		k := oldest.Value.(string)
		m.order.Remove(oldest)
		delete(m.index, k)
		m.entries.Delete(k)
		m.evictions.Add(1)
	}
	return nil
}

func (m *MemoryStore) forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A concurrent Put may have re-inserted the key after the stale delete.
	if _, ok := m.entries.Load(key); ok {
		return
	}
	if el, ok := m.index[key]; ok {
		m.order.Remove(el)
		delete(m.index, key)
	}
}

func (m *MemoryStore) Stats() Stats {
	m.mu.Lock()
	entries := m.order.Len()
	m.mu.Unlock()

	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		Entries:   entries,
	}
}

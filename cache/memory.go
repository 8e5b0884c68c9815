package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is the tier-1 store: an LRU bounded by item count AND by the
// cumulative size of stored values. Whichever budget is exceeded first
// triggers least-recently-used eviction. Entries also carry a TTL checked
// lazily on read.
type Memory struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[string, memoryEntry]
	maxBytes   int64
	curBytes   int64
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemory builds a tier-1 store. maxItems must be positive; maxBytes <= 0
// disables the byte budget; defaultTTL <= 0 disables expiry for entries set
// without an explicit ttl.
func NewMemory(maxItems int, maxBytes int64, defaultTTL time.Duration) (*Memory, error) {
	m := &Memory{
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	lru, err := simplelru.NewLRU(maxItems, func(key string, e memoryEntry) {
		m.curBytes -= int64(len(key) + len(e.value))
	})
	if err != nil {
		return nil, err
	}
	m.lru = lru
	return m, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(key) + len(value))
	if m.maxBytes > 0 && size > m.maxBytes {
		// A value bigger than the whole budget would evict everything and
		// still not fit; drop it instead of thrashing the cache.
		m.lru.Remove(key)
		return nil
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	// Add's eviction callback keeps curBytes in sync for both the
	// replaced entry and count-based evictions.
	m.lru.Remove(key)
	m.lru.Add(key, memoryEntry{value: value, expiresAt: expiresAt})
	m.curBytes += size

	if m.maxBytes > 0 {
		for m.curBytes > m.maxBytes && m.lru.Len() > 1 {
			m.lru.RemoveOldest()
		}
	}
	return nil
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Peek(key)
	if !ok {
		return false, nil
	}
	if m.expired(e) {
		m.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
	m.curBytes = 0
	return nil
}

// Len reports the current item count. Used by the healthz endpoint.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Bytes reports the current cumulative serialized size.
func (m *Memory) Bytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curBytes
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

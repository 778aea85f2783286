package replay

import (
	"sync"
	"time"
)

const sweepEvery = 1024

// memoryStore remembers keys until their expiry. It backs the guard when
// Redis is not configured or the circuit is open.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	inserts int
	now     func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{entries: make(map[string]time.Time), now: now}
}

// setNX stores key when absent or expired and reports whether it was stored.
func (m *memoryStore) setNX(key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false
	}
	m.entries[key] = now.Add(ttl)

	m.inserts++
	if m.inserts%sweepEvery == 0 {
		for k, exp := range m.entries {
			if !now.Before(exp) {
				delete(m.entries, k)
			}
		}
	}
	return true
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

package store

import (
	"context"
	"sync"

	"healthlink/internal/usage"
)

type memoryKey struct {
	endpoint, eventType, method, day string
}

// InMemoryStore keeps counters in a map, for development without a database
// and for tests.
type InMemoryStore struct {
	mu   sync.Mutex
	rows map[memoryKey]usage.Counts
	// failWith, when set, is returned by every Increment.
	failWith error
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[memoryKey]usage.Counts)}
}

// FailWith makes subsequent increments fail; nil restores normal behaviour.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *InMemoryStore) Increment(_ context.Context, key usage.Key, matched bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	k := toMemoryKey(key)
	c := s.rows[k]
	c.Calls++
	if matched {
		c.Positives++
	}
	s.rows[k] = c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key usage.Key) (usage.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[toMemoryKey(key)], nil
}

func toMemoryKey(k usage.Key) memoryKey {
	return memoryKey{endpoint: k.Endpoint, eventType: k.EventType, method: k.Method, day: k.DayString()}
}

package lockout

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	State
	expires time.Time
}

// MemoryStore keeps lockout state in process. Suitable for a single
// instance; use RedisStore when several replicas share a login surface.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return State{}, nil
	}
	return e.State, nil
}

func (m *MemoryStore) RecordFailure(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.After(e.expires) {
		e = &memoryEntry{}
		m.entries[key] = e
	}

	e.FailedCount++
	e.expires = now.Add(window)
	if e.FailedCount >= threshold {
		e.LockedUntil = now.Add(window)
	}

	return e.State, nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep drops entries whose window has passed. The server calls it on a
// ticker so abandoned keys do not accumulate.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if now.After(e.expires) && !e.Locked(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

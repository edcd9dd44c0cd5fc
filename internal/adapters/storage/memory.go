package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps slots for the lifetime of the process. It backs the
// session slot and stands in for durable storage when none is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or (nil, nil) when absent.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.slots[key]
	if !ok {
		return nil, nil
	}

	return append([]byte{}, v...), nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = append([]byte{}, value...)

	return nil
}

// Delete clears the slot.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, key)

	return nil
}

// Name implements ports.HealthChecker.
func (m *MemoryStore) Name() string {
	return "memory"
}

// Check always succeeds.
func (m *MemoryStore) Check(context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

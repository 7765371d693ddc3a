package session

import (
	"context"
	"sync"
)

// MemStore is a non-persistent Store, used for ephemeral sessions and tests.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
	// Deletes counts Delete calls per key.
	Deletes map[string]int
}

// NewMemStore returns an empty store, optionally seeded.
func NewMemStore(seed map[string]string) *MemStore {
	m := &MemStore{values: map[string]string{}, Deletes: map[string]int{}}
	for k, v := range seed {
		m.values[k] = v
	}
	return m
}

func (m *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	m.Deletes[key]++
	return nil
}

// DeleteCount returns how many times key was deleted.
func (m *MemStore) DeleteCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Deletes[key]
}

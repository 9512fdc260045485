package preferences

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	sizes map[Density]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sizes: make(map[Density]int)}
}

func (m *MemoryStore) Get(_ context.Context, d Density) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	size, ok := m.sizes[d]
	return size, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, d Density, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[d] = size
	return nil
}

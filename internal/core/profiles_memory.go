package core

import (
	"context"
	"sync"
)

// MemoryProfiles is a ProfileCache that lives for the life of the process.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]TypeMap
}

// NewMemoryProfiles returns an empty in-memory cache.
func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[string]TypeMap)}
}

func (m *MemoryProfiles) Get(_ context.Context, signature string) (TypeMap, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[signature]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *MemoryProfiles) Put(_ context.Context, signature string, profile TypeMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[signature] = profile.Clone()
	return nil
}

// Len returns the number of stored profiles.
func (m *MemoryProfiles) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

package session

import (
	"context"
	"sync"
)

// MemoryStore is the in-process registry.
//
// It keeps one partition per role behind a single RWMutex. There is no
// capacity bound, no TTL and no persistence.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[Role]map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	partitions := make(map[Role]map[string]*Session, len(Roles))
	for _, role := range Roles {
		partitions[role] = make(map[string]*Session)
	}
	return &MemoryStore{partitions: partitions}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, s *Session) (*Session, error) {
	if err := validateSession(s); err != nil {
		return nil, err
	}
	cp := cloneSession(s)

	m.mu.Lock()
	prev := m.partitions[cp.Role][cp.Subject]
	m.partitions[cp.Role][cp.Subject] = cp
	m.mu.Unlock()
	return prev, nil
}

// Contains implements Store.
func (m *MemoryStore) Contains(_ context.Context, key Key, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	part, ok := m.partitions[key.Role]
	if !ok {
		return false, nil
	}
	s, ok := part[key.Subject]
	if !ok {
		return false, nil
	}
	return s.ID == sessionID, nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, key Key) error {
	m.mu.Lock()
	if part, ok := m.partitions[key.Role]; ok {
		delete(part, key.Subject)
	}
	m.mu.Unlock()
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key Key) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	part, ok := m.partitions[key.Role]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := part[key.Subject]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

// Count implements Store.
func (m *MemoryStore) Count(_ context.Context, role Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.partitions[role]), nil
}

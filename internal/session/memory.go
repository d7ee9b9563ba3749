package session

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu  sync.RWMutex
	cur *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return Session{}, ErrNoSession
	}
	return *m.cur, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	if err := checkComplete(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = &s
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = nil
	return nil
}

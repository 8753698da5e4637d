package session

import (
	"context"
	"sync"
)

type slot struct {
	participant int64
	key         Key
}

// MemoryStore - хранилище в памяти процесса, теряется при перезапуске
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[slot]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[slot]Session)}
}

func (m *MemoryStore) Get(_ context.Context, participant int64, key Key) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := slot{participant, key}
	s, ok := m.sessions[k]
	if !ok {
		s = idle()
		m.sessions[k] = s
	}
	return s.clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, participant int64, key Key, s Session) error {
	if s.State == "" {
		s.State = Idle
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[slot{participant, key}] = s.clone()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, participant int64, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[slot{participant, key}] = idle()
	return nil
}

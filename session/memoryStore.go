package session

import (
	"context"
	"sync"
)

// MemoryStore holds uploads for the life of the process. Nothing expires.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.items[id]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (s *MemoryStore) Set(ctx context.Context, id string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = text
	return nil
}

func (s *MemoryStore) Evict(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

package history

import (
	"context"
	"sync"
)

// Store persists entries newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	// Update replaces the list with fn's result atomically with respect to
	// other writers of the same store.
	Update(ctx context.Context, fn func([]Entry) []Entry) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{e}, s.entries...)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...), nil
}

func (s *MemoryStore) Update(_ context.Context, fn func([]Entry) []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = fn(append([]Entry(nil), s.entries...))
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

package chunkstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps chunks in a map. Data is copied in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, handle string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.chunks[handle]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Put(_ context.Context, handle string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[handle] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, handle)
	return nil
}

// Handles lists every stored chunk handle.
func (s *MemoryStore) Handles() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Keys(s.chunks)), nil
}

func (s *MemoryStore) Close() error { return nil }

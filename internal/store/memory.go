package store

import "sync"

// Memory is an in-memory settings store for tests.
type Memory struct {
	mu   sync.RWMutex
	m    map[string]string
	sets int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

// Get returns the value for key, or ErrNotFound.
func (s *Memory) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (s *Memory) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	s.sets++
	return nil
}

// Delete removes key.
func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}

// Close is a no-op.
func (s *Memory) Close() error { return nil }

// SetCount reports how many Set calls the store has seen.
func (s *Memory) SetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets
}

var _ Store = (*Memory)(nil)

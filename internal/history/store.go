// Package history persists the editable dictation document (debounced
// autosave) and the deduplicated history of completed transcripts.
package history

import "sync"

// Store is the durable key-value persistence the manager writes through.
// Implementations must tolerate missing keys: a first run starts empty.
type Store interface {
	// Get returns the value for key, with ok=false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key string, value string) error
	Delete(key string) error
}

// MemoryStore is an in-process Store for tests and for running without a
// database path.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

package session

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageUnavailable wraps every backend failure.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Storage persists the session keys.
//
// Load returns only the keys that exist. Save writes set and removes del as a single
// operation where the backend allows it.
type Storage interface {
	Load(ctx context.Context, keys ...string) (map[string]string, error)
	Save(ctx context.Context, set map[string]string, del ...string) error
}

// MemoryStorage keeps the keys in a map. The zero value is not usable; call
// [NewMemoryStorage].
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Load implements [Storage].
func (m *MemoryStorage) Load(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save implements [Storage].
func (m *MemoryStorage) Save(_ context.Context, set map[string]string, del ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range set {
		m.values[k] = v
	}
	for _, k := range del {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

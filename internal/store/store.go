// Package store provides the durable key/value collaborator used for user
// state such as favorites and saved filter profiles.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	// FavoritesKey holds the favorite repository ID set
	FavoritesKey = "favorites"

	// FilterProfilesKey holds the saved filter profiles record
	FilterProfilesKey = "filterProfiles"
)

// KeyValueStore is opaque durable storage with last-write-wins semantics.
// Values are JSON encoded.
type KeyValueStore interface {
	// Get decodes the value stored under key into dst. It returns false
	// when the key has never been set.
	Get(key string, dst any) (bool, error)
	// Set replaces the value stored under key.
	Set(key string, value any) error
	Close() error
}

// Memory is an in-process KeyValueStore.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *Memory) Close() error {
	return nil
}

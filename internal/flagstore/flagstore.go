// Package flagstore persists small user-decision flags, such as "never run
// the settings migration" or "stop suggesting the library install".
package flagstore

import "sync"

// Store is an opaque key-value store for decision flags. Reads observe
// prior writes from the same process; no other ordering is guaranteed.
type Store interface {
	// Get returns the stored value for key, or def when the key is unset
	// or the store cannot be read.
	Get(key string, def bool) bool
	// Set stores the value for key.
	Set(key string, value bool) error
}

// Memory is an in-process Store. Flags do not survive a restart; it backs
// tests and serves as the fallback when the on-disk store cannot open.
type Memory struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{flags: make(map[string]bool)}
}

// Get implements Store.
func (m *Memory) Get(key string, def bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.flags[key]; ok {
		return v
	}
	return def
}

// Set implements Store.
func (m *Memory) Set(key string, value bool) error {
	m.mu.Lock()
	m.flags[key] = value
	m.mu.Unlock()
	return nil
}

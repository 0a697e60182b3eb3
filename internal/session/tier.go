// ABOUTME: Storage tier abstraction for session persistence
// ABOUTME: A tier is a flat key/value namespace; MemoryTier backs tests and ephemeral sessions

package session

import (
	"context"
	"sync"
)

// Tier is one storage location holding session keys.
type Tier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryTier is an in-process Tier.
type MemoryTier struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Tier = (*MemoryTier)(nil)

// NewMemoryTier creates an empty in-memory tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: make(map[string]string)}
}

func (t *MemoryTier) Get(_ context.Context, key string) (string, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.values[key]
	return v, ok, nil
}

func (t *MemoryTier) Put(_ context.Context, values map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range values {
		t.values[k] = v
	}
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range keys {
		delete(t.values, k)
	}
	return nil
}

// Len returns the number of keys held.
func (t *MemoryTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

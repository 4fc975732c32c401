package cache

import (
	"context"
	"sync"

	"syndic/pkg/platform/sentinel"
)

// Memory is an in-process ReadCache for tests and single-node runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ ReadCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.data[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (c *Memory) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	c.data[key] = stored
	return nil
}

func (c *Memory) SetMulti(ctx context.Context, entries map[string][]byte) error {
	for key, value := range entries {
		if err := c.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Memory) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Contains reports whether the key is currently cached; test helper.
func (c *Memory) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok
}

package localcache

import (
	"encoding/json"
	"sync"
)

// Keys used by the storefront.
const (
	KeyCart            = "cart"
	KeyOrders          = "orders"
	KeyUser            = "user"
	KeyUserAvatar      = "userAvatar"
	KeyRegisteredUsers = "registeredUsers"
)

// Cache is a small synchronous key-value store holding JSON values.
type Cache interface {
	// Get decodes the value stored under key into v and reports whether it existed.
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Remove(key string) error
}

// MemoryCache keeps values for the life of the process.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]json.RawMessage)}
}

func (c *MemoryCache) Get(key string, v any) (bool, error) {
	c.mu.RLock()
	raw, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (c *MemoryCache) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Remove(key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

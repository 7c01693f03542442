package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const DefaultFileName = "storefront_cache.json"

// FileCache persists every key into one JSON document on disk.
type FileCache struct {
	filePath string
	mu       sync.RWMutex
	data     map[string]json.RawMessage
}

// NewFileCache opens (or creates) the cache file. An unreadable file is
// treated as empty so a corrupt cache never blocks startup.
func NewFileCache(path string) (*FileCache, error) {
	if path == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, DefaultFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	c := &FileCache{
		filePath: path,
		data:     make(map[string]json.RawMessage),
	}
	if err := c.load(); err != nil {
		log.Printf("[Cache] Ignoring unreadable cache file %s: %v", path, err)
		c.data = make(map[string]json.RawMessage)
	}
	return c, nil
}

func (c *FileCache) Path() string { return c.filePath }

func (c *FileCache) Get(key string, v any) (bool, error) {
	c.mu.RLock()
	raw, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("cache key %q: %w", key, err)
	}
	return true, nil
}

func (c *FileCache) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.data[key]
	c.data[key] = raw
	if err := c.flush(); err != nil {
		if had {
			c.data[key] = prev
		} else {
			delete(c.data, key)
		}
		return err
	}
	return nil
}

func (c *FileCache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; !ok {
		return nil
	}
	delete(c.data, key)
	return c.flush()
}

func (c *FileCache) load() error {
	data, err := os.ReadFile(c.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &c.data)
}

// flush writes the whole map through a temp file and rename. Caller holds mu.
func (c *FileCache) flush() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.filePath), ".cache-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.filePath)
}

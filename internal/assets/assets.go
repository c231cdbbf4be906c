// Package assets locates and reads shader documents and resource files from
// a list of search directories.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager finds files in search roots and caches their contents.
type Manager struct {
	roots []string
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddRoot adds a search directory.
// Roots are searched in reverse order (last added = highest priority).
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding search root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("search root %s is not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, filepath.Clean(dir))
	m.mu.Unlock()

	return nil
}

// Roots returns the search directories in the order they were added.
func (m *Manager) Roots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.roots...)
}

// Locate returns the path of name. Absolute paths and paths relative to the
// working directory win over the search roots.
func (m *Manager) Locate(name string) (string, bool) {
	if isFile(name) {
		return filepath.Clean(name), true
	}
	if filepath.IsAbs(name) {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		p := filepath.Join(m.roots[i], name)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// Load reads a file found by Locate.
func (m *Manager) Load(name string) ([]byte, error) {
	path, ok := m.Locate(name)
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}

	// Check cache first
	if data, ok := m.cache.Get(path); ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m.cache.Set(path, data)
	return data, nil
}

// Invalidate drops the cached contents of path so the next Load reads the
// file again.
func (m *Manager) Invalidate(path string) {
	m.cache.Delete(filepath.Clean(path))
}

// Close forgets the search roots and the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.cache.Clear()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Delete removes an item from cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

package verifier

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CacheMode controls whether plugin modules are reloaded on every call.
type CacheMode int

const (
	// CacheReload reads and loads the plugin file on every dispatch.
	CacheReload CacheMode = iota
	// CacheOnce loads each plugin file once and reuses it until invalidated.
	CacheOnce
)

func (m CacheMode) String() string {
	if m == CacheOnce {
		return "once"
	}
	return "reload"
}

// ParseCacheMode accepts "reload" or "once" (empty means reload).
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reload", "always":
		return CacheReload, nil
	case "once", "cache":
		return CacheOnce, nil
	default:
		return CacheReload, fmt.Errorf("invalid plugin cache mode: %q", s)
	}
}

type moduleCache struct {
	mode    CacheMode
	mu      sync.Mutex
	modules map[string]Module
}

func newModuleCache(mode CacheMode) *moduleCache {
	return &moduleCache{mode: mode, modules: make(map[string]Module)}
}

func (c *moduleCache) get(path string) (Module, bool) {
	if c.mode != CacheOnce {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[filepath.Clean(path)]
	return m, ok
}

func (c *moduleCache) put(path string, m Module) {
	if c.mode != CacheOnce {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[filepath.Clean(path)] = m
}

func (c *moduleCache) invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := filepath.Clean(path)
	_, ok := c.modules[key]
	delete(c.modules, key)
	return ok
}

func (c *moduleCache) flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.modules)
	c.modules = make(map[string]Module)
	return n
}

func (c *moduleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

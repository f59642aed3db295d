package pipeline

import (
	"sort"
	"sync"
)

// Context is the per request key/value bag shared by the pipeline stages.
// Acquired resources are stored under their resource name.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns a Context seeded with values.
func NewContext(values ...map[string]any) *Context {
	c := &Context{values: make(map[string]any)}
	for _, seed := range values {
		for k, v := range seed {
			c.values[k] = v
		}
	}
	return c
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *Context) Value(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Keys returns the populated keys in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored under key when it has type T.
func Get[T any](c *Context, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	v, ok := c.Value(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

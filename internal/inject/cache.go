package inject

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// instanceCache keeps built instances by key. Concurrent misses on one key
// share a single build.
type instanceCache struct {
	mu     sync.RWMutex
	values map[string]any
	group  singleflight.Group
}

func newInstanceCache() *instanceCache {
	return &instanceCache{values: map[string]any{}}
}

func (c *instanceCache) load(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// get returns the instance stored under key, calling build on a miss. A
// failed build stores nothing, so a later call builds again. Waiting for
// another caller's build stops when ctx is done.
func (c *instanceCache) get(ctx context.Context, key string, build func() (any, error)) (any, error) {
	if v, ok := c.load(key); ok {
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.load(key); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *instanceCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

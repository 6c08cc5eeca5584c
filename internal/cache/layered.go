package cache

import "time"

// LayeredCache reads through a fast front cache to a slower back cache
type LayeredCache struct {
	front Cache
	back  Cache
}

// NewLayeredCache stacks front over back
func NewLayeredCache(front, back Cache) *LayeredCache {
	return &LayeredCache{front: front, back: back}
}

// Get checks the front first and promotes back hits
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.front.Get(key); found {
		return val, true
	}
	if val, found := c.back.Get(key); found {
		_ = c.front.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

// Set stores value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.front.Set(key, value, ttl); err != nil {
		return err
	}
	return c.back.Set(key, value, ttl)
}

// Delete removes key from both layers
func (c *LayeredCache) Delete(key string) error {
	frontErr := c.front.Delete(key)
	if err := c.back.Delete(key); err != nil {
		return err
	}
	return frontErr
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	frontErr := c.front.Clear()
	if err := c.back.Clear(); err != nil {
		return err
	}
	return frontErr
}

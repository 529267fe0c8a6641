package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache reads through its layers in order (fastest first) and writes to all of them.
// A hit in a slower layer is promoted into the faster ones.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a cache over the given layers, skipping nil entries
func NewLayeredCache(layers ...Cache) *LayeredCache {
	c := &LayeredCache{}
	for _, l := range layers {
		if l != nil {
			c.layers = append(c.layers, l)
		}
	}
	return c
}

// Get checks each layer in order
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(ctx, key)
		if !found {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(ctx, key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set stores a value in every layer
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a value from every layer
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear empties every layer
func (c *LayeredCache) Clear(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. Every lookup misses, so a pipeline backed by it
// renders and encodes every artifact. It backs --no-cache and cache backend
// "none".
type NullCache struct{}

// NewNullCache creates a NullCache.
func NewNullCache() Cache {
	return NullCache{}
}

// Get always misses.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards data.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Delete does nothing.
func (NullCache) Delete(context.Context, string) error {
	return nil
}

// Close does nothing.
func (NullCache) Close() error {
	return nil
}

var _ Cache = NullCache{}

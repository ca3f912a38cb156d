// Package cache stores rendered artifacts and fetched images.
//
// [Cache] is a small byte-oriented key/value interface with per-entry TTLs.
// Three backends implement it:
//
//   - [FileCache]: JSON entries under a directory, used by the CLI
//   - [RedisCache]: a shared Redis instance, used by the HTTP service
//   - [NullCache]: stores nothing, for --no-cache and tests
//
// Keys come from a [Keyer] so the CLI and the server derive identical keys
// for identical inputs. [ScopedKeyer] prefixes every key to isolate builds
// that share one backend.
package cache

import (
	"context"
	"time"
)

// Default lifetimes for cached entries.
const (
	// TTLArtifact bounds how long an encoded card is reused.
	TTLArtifact = 7 * 24 * time.Hour
	// TTLImage bounds how long a fetched flag icon is reused.
	TTLImage = 24 * time.Hour
)

// Cache is a byte store with expiring entries. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// ArtifactKeyOpts are the output options that change an artifact's bytes.
type ArtifactKeyOpts struct {
	Format  string  `json:"format"`
	Scale   float64 `json:"scale"`
	Quality int     `json:"quality,omitempty"`
	Paper   string  `json:"paper,omitempty"`
	Title   string  `json:"title,omitempty"`
}

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey keys an encoded card by the hash of its request.
	ArtifactKey(requestHash string, opts ArtifactKeyOpts) string
	// ImageKey keys fetched image bytes by URL.
	ImageKey(url string) string
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey returns "artifact:<hash>".
func (DefaultKeyer) ArtifactKey(requestHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", requestHash, opts)
}

// ImageKey returns "image:<hash of url>".
func (DefaultKeyer) ImageKey(url string) string {
	return hashKey("image", url)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}

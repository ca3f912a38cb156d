package cache

// ScopedKeyer wraps a Keyer with a prefix. The CLI scopes artifact keys by
// build version so a shared cache never mixes renders from different
// releases.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "v1.4.0:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(requestHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(requestHash, opts)
}

// ImageKey generates a prefixed key for image caching.
func (k *ScopedKeyer) ImageKey(url string) string {
	return k.prefix + k.inner.ImageKey(url)
}

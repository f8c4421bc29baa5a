package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc computes the encoded value for a missing key.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Loader wraps a Cache with get-or-compute semantics. Errors are never
// cached, and concurrent misses for one key share a single LoadFunc call.
type Loader struct {
	cache  Cache
	policy Policy
	group  singleflight.Group
}

// NewLoader creates a Loader. A nil cache or a policy that disables caching
// makes Load call fn every time.
func NewLoader(c Cache, policy Policy) *Loader {
	return &Loader{cache: c, policy: policy}
}

// Load returns the cached value for key or computes it with fn. The second
// result reports a cache hit.
func (l *Loader) Load(ctx context.Context, key string, fn LoadFunc) ([]byte, bool, error) {
	if l.cache == nil || !l.policy.ShouldCache() || ValidateKey(key) != nil {
		v, err := fn(ctx)
		return v, false, err
	}

	if v, ok := l.cache.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		out, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		_ = l.cache.Set(ctx, key, out, l.policy.EffectiveTTL(0))
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Forget drops key from the cache.
func (l *Loader) Forget(ctx context.Context, key string) {
	if l.cache != nil {
		_ = l.cache.Delete(ctx, key)
	}
	l.group.Forget(key)
}

package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is used when Set is given no TTL by the caller.
	// Zero disables caching.
	DefaultTTL time.Duration

	// MaxTTL clamps caller-provided TTLs. Zero means no maximum.
	MaxTTL time.Duration

	// MaxEntries bounds a MemoryCache. Zero means unbounded.
	MaxEntries int
}

// DefaultPolicy returns the policy used for inference results.
// DefaultTTL: 1 hour, MaxTTL: 24 hours, MaxEntries: 10000
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: time.Hour,
		MaxTTL:     24 * time.Hour,
		MaxEntries: 10000,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether the policy caches anything.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL applies the default and clamps to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

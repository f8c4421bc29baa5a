// Package cache holds inference results keyed by model and normalized text.
//
// MemoryCache is a bounded TTL map. Loader layers get-or-compute on top of
// any Cache and collapses concurrent misses for the same key into one call.
package cache

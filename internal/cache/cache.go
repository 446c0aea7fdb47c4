// Package cache provides a small in-process TTL cache. The ledger uses it
// for derived read models that are expensive to recompute, like debt payoff
// projections; authoritative state never lives here.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

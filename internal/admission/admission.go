// Package admission implements the stream-admission cache: the
// advisory, O(1) check an ingestion connection uses to decide whether
// a new stream hash may start occupying storage. It is advisory only
// — the retention sweeper's view of the SQLite store is ground truth
// and periodically reseeds whichever backend is configured here.
package admission

import "gomodel/internal/storage"

// HashCount pairs a stream hash with its row count. Reseed takes a
// slice of these, as returned by storage.Store.TopHashesWithCounts.
type HashCount = storage.HashCount

// Cache is the pluggable admission-cache backend. Implementations
// must be safe for concurrent use by many ingestion goroutines.
type Cache interface {
	// Admit reports whether hash is allowed to occupy a cache slot.
	// An already-known hash is always admitted. An unknown hash is
	// admitted only while the cache has room under maxHashes;
	// admitting it also reserves its slot.
	Admit(hash string) bool

	// Reseed replaces the cache's membership with pairs, the current
	// top-N hashes by row count per the store. Called by the
	// retention sweeper after it detects the cache has drifted from
	// the store (cardinality over the configured cap).
	Reseed(pairs []HashCount)

	// Len returns the number of hashes currently admitted.
	Len() int

	// Close releases any resources (network connections) held by the
	// backend.
	Close() error
}

// Config selects and configures an admission cache backend.
type Config struct {
	// Backend is "local" or "redis". Empty means "local".
	Backend string

	// MaxHashes caps cardinality for either backend.
	MaxHashes int

	// Redis is used only when Backend == "redis".
	Redis RedisConfig
}

// New constructs the configured Cache backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.MaxHashes), nil
	case "redis":
		return NewRedis(cfg.Redis, cfg.MaxHashes)
	default:
		return nil, &UnknownBackendError{Backend: cfg.Backend}
	}
}

// UnknownBackendError is returned by New for an unrecognized backend
// name.
type UnknownBackendError struct {
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return "admission: unknown backend " + e.Backend + " (valid: local, redis)"
}

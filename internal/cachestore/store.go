// Package cachestore persists geocoding results keyed by (provider,
// normalized address), with Postgres and SQLite drivers. Writes are
// idempotent upserts, so concurrent resolutions for the same address
// converge without explicit locking.
package cachestore

import (
	"context"
	"time"

	"github.com/peachstate/votergeo/pkg/geocode"
)

// Store is the persistence contract for the geocode cache. Lookup returns
// geocode.ErrCacheMiss when no usable entry exists; Store overwrites any
// existing entry for the pair.
type Store interface {
	geocode.CacheStore
	Stats(ctx context.Context) ([]ProviderStats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// ProviderStats is a read-only rollup of cache contents for one provider,
// used by operational dashboards and never by the resolution path.
type ProviderStats struct {
	Provider        string    `json:"provider" yaml:"provider"`
	CachedCount     int64     `json:"cached_count" yaml:"cached_count"`
	OldestFetchedAt time.Time `json:"oldest_fetched_at" yaml:"oldest_fetched_at"`
	NewestFetchedAt time.Time `json:"newest_fetched_at" yaml:"newest_fetched_at"`
}

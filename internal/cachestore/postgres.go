package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/peachstate/votergeo/internal/db"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// PostgresStore implements Store on a Postgres pool.
type PostgresStore struct {
	pool   db.Pool
	maxAge time.Duration
	closer func()
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithMaxAge sets the staleness bound applied on Lookup. Zero (the default)
// means entries never expire; there is deliberately no implicit TTL.
func WithMaxAge(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.maxAge = d
	}
}

// WithCloser registers the function Close calls to release the pool.
func WithCloser(fn func()) PostgresOption {
	return func(s *PostgresStore) {
		s.closer = fn
	}
}

// NewPostgres creates a PostgresStore over an existing pool.
func NewPostgres(pool db.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	provider           TEXT NOT NULL,
	normalized_address TEXT NOT NULL,
	latitude           DOUBLE PRECISION NOT NULL,
	longitude          DOUBLE PRECISION NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL,
	quality            TEXT NOT NULL,
	matched_address    TEXT,
	raw                JSONB,
	fetched_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, normalized_address)
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_fetched_at ON geocode_cache(fetched_at);
`

// Migrate creates the cache schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cachestore: migrate postgres")
}

// Close releases the underlying pool when a closer was registered.
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

// Lookup implements Store. Entries older than the configured max age count
// as misses.
func (s *PostgresStore) Lookup(ctx context.Context, provider, normalizedAddress string) (*geocode.Result, error) {
	query := `
		SELECT latitude, longitude, confidence, quality, matched_address, raw
		FROM geocode_cache
		WHERE provider = $1 AND normalized_address = $2`
	if s.maxAge > 0 {
		query += fmt.Sprintf(" AND fetched_at > now() - interval '%d seconds'", int(s.maxAge.Seconds()))
	}

	var result geocode.Result
	var matched *string
	var raw []byte
	row := s.pool.QueryRow(ctx, query, provider, normalizedAddress)
	if err := row.Scan(&result.Latitude, &result.Longitude, &result.Confidence, &result.Quality, &matched, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, geocode.ErrCacheMiss
		}
		return nil, eris.Wrap(err, "cachestore: lookup")
	}

	if matched != nil {
		result.MatchedAddress = *matched
	}
	if len(raw) > 0 {
		result.Raw = json.RawMessage(raw)
	}
	return &result, nil
}

// Store implements Store with an idempotent upsert on the pair key.
func (s *PostgresStore) Store(ctx context.Context, provider, normalizedAddress string, result *geocode.Result) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (provider, normalized_address, latitude, longitude, confidence, quality, matched_address, raw, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (provider, normalized_address) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			confidence = EXCLUDED.confidence,
			quality = EXCLUDED.quality,
			matched_address = EXCLUDED.matched_address,
			raw = EXCLUDED.raw,
			fetched_at = now()`,
		provider, normalizedAddress,
		result.Latitude, result.Longitude, result.Confidence, string(result.Quality),
		nilIfEmpty(result.MatchedAddress), nilIfEmptyBytes(result.Raw),
	)
	return eris.Wrap(err, "cachestore: store")
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) ([]ProviderStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider, COUNT(*) AS cached_count, MIN(fetched_at), MAX(fetched_at)
		FROM geocode_cache
		GROUP BY provider
		ORDER BY provider`)
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: stats")
	}
	defer rows.Close()

	var stats []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		if err := rows.Scan(&ps.Provider, &ps.CachedCount, &ps.OldestFetchedAt, &ps.NewestFetchedAt); err != nil {
			return nil, eris.Wrap(err, "cachestore: scan stats")
		}
		stats = append(stats, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cachestore: iterate stats")
	}
	return stats, nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nilIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

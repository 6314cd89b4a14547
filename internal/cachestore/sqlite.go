package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/peachstate/votergeo/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-node
// deployments that do not run Postgres.
type SQLiteStore struct {
	db     *sql.DB
	maxAge time.Duration
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteMaxAge sets the staleness bound applied on Lookup. Zero means
// entries never expire.
func WithSQLiteMaxAge(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		s.maxAge = d
	}
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cachestore: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sqliteTimeLayout is a fixed-width UTC format so fetched_at strings order
// lexicographically the same as chronologically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	provider           TEXT NOT NULL,
	normalized_address TEXT NOT NULL,
	latitude           REAL NOT NULL,
	longitude          REAL NOT NULL,
	confidence         REAL NOT NULL,
	quality            TEXT NOT NULL,
	matched_address    TEXT,
	raw                TEXT,
	fetched_at         TEXT NOT NULL,
	PRIMARY KEY (provider, normalized_address)
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_fetched_at ON geocode_cache(fetched_at);
`

// Migrate creates the cache schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cachestore: migrate sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lookup implements Store. Entries older than the configured max age count
// as misses.
func (s *SQLiteStore) Lookup(ctx context.Context, provider, normalizedAddress string) (*geocode.Result, error) {
	query := `
		SELECT latitude, longitude, confidence, quality, matched_address, raw
		FROM geocode_cache
		WHERE provider = ? AND normalized_address = ?`
	args := []any{provider, normalizedAddress}
	if s.maxAge > 0 {
		query += " AND fetched_at > ?"
		args = append(args, time.Now().UTC().Add(-s.maxAge).Format(sqliteTimeLayout))
	}

	var result geocode.Result
	var matched sql.NullString
	var raw sql.NullString
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&result.Latitude, &result.Longitude, &result.Confidence, &result.Quality, &matched, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, geocode.ErrCacheMiss
		}
		return nil, eris.Wrap(err, "cachestore: lookup sqlite")
	}

	if matched.Valid {
		result.MatchedAddress = matched.String
	}
	if raw.Valid && raw.String != "" {
		result.Raw = json.RawMessage(raw.String)
	}
	return &result, nil
}

// Store implements Store with an idempotent upsert on the pair key.
func (s *SQLiteStore) Store(ctx context.Context, provider, normalizedAddress string, result *geocode.Result) error {
	var matched any
	if result.MatchedAddress != "" {
		matched = result.MatchedAddress
	}
	var raw any
	if len(result.Raw) > 0 {
		raw = string(result.Raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (provider, normalized_address, latitude, longitude, confidence, quality, matched_address, raw, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, normalized_address) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			confidence = excluded.confidence,
			quality = excluded.quality,
			matched_address = excluded.matched_address,
			raw = excluded.raw,
			fetched_at = excluded.fetched_at`,
		provider, normalizedAddress,
		result.Latitude, result.Longitude, result.Confidence, string(result.Quality),
		matched, raw, time.Now().UTC().Format(sqliteTimeLayout),
	)
	return eris.Wrap(err, "cachestore: store sqlite")
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) ([]ProviderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*) AS cached_count, MIN(fetched_at), MAX(fetched_at)
		FROM geocode_cache
		GROUP BY provider
		ORDER BY provider`)
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: stats sqlite")
	}
	defer rows.Close()

	var stats []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		var oldest, newest string
		if err := rows.Scan(&ps.Provider, &ps.CachedCount, &oldest, &newest); err != nil {
			return nil, eris.Wrap(err, "cachestore: scan stats sqlite")
		}
		if ps.OldestFetchedAt, err = time.Parse(sqliteTimeLayout, oldest); err != nil {
			return nil, eris.Wrap(err, "cachestore: parse oldest fetched_at")
		}
		if ps.NewestFetchedAt, err = time.Parse(sqliteTimeLayout, newest); err != nil {
			return nil, eris.Wrap(err, "cachestore: parse newest fetched_at")
		}
		stats = append(stats, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cachestore: iterate stats sqlite")
	}
	return stats, nil
}

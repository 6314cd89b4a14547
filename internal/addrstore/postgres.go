// Package addrstore persists canonical address records produced by
// geocoding resolution.
package addrstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/peachstate/votergeo/internal/db"
	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// PostgresStore implements service.AddressUpserter on a Postgres pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore over an existing pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const addressMigration = `
CREATE TABLE IF NOT EXISTS addresses (
	id              UUID PRIMARY KEY,
	street          TEXT NOT NULL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	zip             TEXT NOT NULL DEFAULT '',
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	quality         TEXT NOT NULL,
	matched_address TEXT,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (street, city, state, zip)
);
`

// Migrate creates the canonical address schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, addressMigration)
	return eris.Wrap(err, "addrstore: migrate")
}

// Upsert stores or refreshes the canonical record for parsed components,
// returning the stored address identity. Conflicts on the component key
// keep the original id and take the fresher coordinates.
func (s *PostgresStore) Upsert(ctx context.Context, c service.Components, result *geocode.Result) (string, error) {
	var id string
	row := s.pool.QueryRow(ctx, `
		INSERT INTO addresses (id, street, city, state, zip, latitude, longitude, confidence, quality, matched_address, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (street, city, state, zip) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			confidence = EXCLUDED.confidence,
			quality = EXCLUDED.quality,
			matched_address = EXCLUDED.matched_address,
			updated_at = now()
		RETURNING id`,
		uuid.New().String(), c.Street, c.City, c.State, c.Zip,
		result.Latitude, result.Longitude, result.Confidence, string(result.Quality),
		result.MatchedAddress,
	)
	if err := row.Scan(&id); err != nil {
		return "", eris.Wrap(err, "addrstore: upsert")
	}
	return id, nil
}

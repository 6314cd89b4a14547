package addrstore

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

func TestUpsert_ReturnsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`(?s)INSERT INTO addresses.*ON CONFLICT \(street, city, state, zip\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "123 MAIN ST", "ATLANTA", "GA", "30303",
			33.7490, -84.3880, 0.9, "exact", "123 MAIN ST, ATLANTA, GA, 30303").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("7f9c24e5-1fd4-4f3d-9f0a-000000000001"))

	s := NewPostgres(mock)
	id, err := s.Upsert(context.Background(),
		service.Components{Street: "123 MAIN ST", City: "ATLANTA", State: "GA", Zip: "30303"},
		&geocode.Result{
			Latitude:       33.7490,
			Longitude:      -84.3880,
			Confidence:     0.9,
			Quality:        geocode.QualityExact,
			MatchedAddress: "123 MAIN ST, ATLANTA, GA, 30303",
		})
	require.NoError(t, err)
	assert.Equal(t, "7f9c24e5-1fd4-4f3d-9f0a-000000000001", id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_PropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO addresses`).
		WillReturnError(assert.AnError)

	s := NewPostgres(mock)
	_, err = s.Upsert(context.Background(), service.Components{Street: "x"}, &geocode.Result{})
	require.Error(t, err)
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS addresses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := NewPostgres(mock)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

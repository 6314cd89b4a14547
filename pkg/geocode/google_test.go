package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleGeocode_Rooftop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 33.7490, "lng": -84.3880},
					"location_type": "ROOFTOP"
				},
				"formatted_address": "123 Main St, Atlanta, GA 30303, USA"
			}]
		}`)
	}))
	defer srv.Close()

	g := NewGoogle(GoogleConfig{Enabled: true, APIKey: "test-key", BaseURL: srv.URL})

	result, err := g.Geocode(context.Background(), "123 main st atlanta")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, QualityExact, result.Quality)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "123 Main St, Atlanta, GA 30303, USA", result.MatchedAddress)
}

func TestGoogleGeocode_ZeroResultsIsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	g := NewGoogle(GoogleConfig{Enabled: true, APIKey: "test-key", BaseURL: srv.URL})

	result, err := g.Geocode(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestGoogleGeocode_StatusErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "OVER_QUERY_LIMIT", "error_message": "quota exceeded"}`)
	}))
	defer srv.Close()

	g := NewGoogle(GoogleConfig{Enabled: true, APIKey: "test-key", BaseURL: srv.URL})

	_, err := g.Geocode(context.Background(), "123 main st")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "google", pe.Provider)
	assert.Contains(t, pe.Message, "OVER_QUERY_LIMIT")
	assert.Contains(t, pe.Message, "quota exceeded")
}

func TestGoogleQuality_Mapping(t *testing.T) {
	cases := []struct {
		locType    string
		quality    Quality
		confidence float64
	}{
		{"ROOFTOP", QualityExact, 1.0},
		{"RANGE_INTERPOLATED", QualityInterpolated, 0.8},
		{"GEOMETRIC_CENTER", QualityApproximate, 0.6},
		{"APPROXIMATE", QualityApproximate, 0.4},
		{"", QualityApproximate, 0.4},
	}
	for _, tc := range cases {
		q, conf := googleQuality(tc.locType)
		assert.Equal(t, tc.quality, q, tc.locType)
		assert.Equal(t, tc.confidence, conf, tc.locType)
	}
}

func TestGoogle_RequiresAPIKey(t *testing.T) {
	assert.False(t, NewGoogle(GoogleConfig{Enabled: true}).Configured())
	assert.True(t, NewGoogle(GoogleConfig{Enabled: true, APIKey: "k"}).Configured())
	assert.True(t, NewGoogle(GoogleConfig{}).RequiresAPIKey())
}

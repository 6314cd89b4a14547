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

func TestCensusGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "Public_AR_Current", r.URL.Query().Get("benchmark"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -84.3880, "y": 33.7490},
					"matchedAddress": "123 MAIN ST, ATLANTA, GA, 30303"
				}]
			}
		}`)
	}))
	defer srv.Close()

	g := NewCensus(CensusConfig{Enabled: true, BaseURL: srv.URL})

	result, err := g.Geocode(context.Background(), "123 main st atlanta ga 30303")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 33.7490, result.Latitude, 0.0001)
	assert.InDelta(t, -84.3880, result.Longitude, 0.0001)
	assert.Equal(t, QualityExact, result.Quality)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "123 MAIN ST, ATLANTA, GA, 30303", result.MatchedAddress)
	assert.NotEmpty(t, result.Raw)
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	g := NewCensus(CensusConfig{Enabled: true, BaseURL: srv.URL})

	result, err := g.Geocode(context.Background(), "123 nowhere st faketown")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCensusGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewCensus(CensusConfig{Enabled: true, BaseURL: srv.URL})

	result, err := g.Geocode(context.Background(), "123 main st")
	assert.Nil(t, result)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "census", pe.Provider)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
}

func TestCensusGeocode_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": not json`)
	}))
	defer srv.Close()

	g := NewCensus(CensusConfig{Enabled: true, BaseURL: srv.URL})

	_, err := g.Geocode(context.Background(), "123 main st")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "census", pe.Provider)
}

func TestCensus_Metadata(t *testing.T) {
	g := NewCensus(CensusConfig{Enabled: true})
	assert.Equal(t, "census", g.Name())
	assert.Equal(t, ServiceIndividual, g.ServiceType())
	assert.False(t, g.RequiresAPIKey())
	assert.True(t, g.Configured())
	assert.Zero(t, g.RateLimitDelay())

	assert.False(t, NewCensus(CensusConfig{}).Configured())
}

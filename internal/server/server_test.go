package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peachstate/votergeo/internal/cachestore"
	"github.com/peachstate/votergeo/internal/resilience"
	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

type stubGeocoder struct {
	name   string
	result *geocode.Result
	err    error
}

func (s *stubGeocoder) Name() string                     { return s.name }
func (s *stubGeocoder) ServiceType() geocode.ServiceType { return geocode.ServiceIndividual }
func (s *stubGeocoder) RequiresAPIKey() bool             { return false }
func (s *stubGeocoder) Configured() bool                 { return true }
func (s *stubGeocoder) RateLimitDelay() float64          { return 0 }
func (s *stubGeocoder) Geocode(context.Context, string) (*geocode.Result, error) {
	return s.result, s.err
}

type stubStats struct {
	stats []cachestore.ProviderStats
	err   error
}

func (s *stubStats) Stats(context.Context) ([]cachestore.ProviderStats, error) {
	return s.stats, s.err
}

func newTestServer(stats StatsSource, providers ...geocode.Geocoder) *Server {
	retry := resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	invoker := geocode.NewInvoker(retry, 2)
	cascade := geocode.NewCascade(providers, nil, invoker)
	resolver := service.NewResolver(cascade, invoker, nil, service.WithFallback(true))

	var metadata []geocode.Metadata
	for _, p := range providers {
		metadata = append(metadata, geocode.ProviderMetadata(p))
	}
	return New(resolver, stats, metadata)
}

func postGeocode(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/geocode", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleGeocode_Found(t *testing.T) {
	g := &stubGeocoder{name: "census", result: &geocode.Result{
		Latitude:       33.7490,
		Longitude:      -84.3880,
		Confidence:     0.9,
		Quality:        geocode.QualityExact,
		MatchedAddress: "123 MAIN ST, ATLANTA, GA, 30303",
	}}
	h := newTestServer(nil, g).Handler()

	rec := postGeocode(t, h, `{"address": "123 Main St, Atlanta, GA 30303"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Quality   string  `json:"quality"`
		Metadata  struct {
			Cached   bool   `json:"cached"`
			Provider string `json:"provider"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 33.7490, resp.Latitude, 0.0001)
	assert.Equal(t, "exact", resp.Quality)
	assert.Equal(t, "census", resp.Metadata.Provider)
	assert.False(t, resp.Metadata.Cached)
}

func TestHandleGeocode_NoMatchIs404(t *testing.T) {
	g := &stubGeocoder{name: "census", result: nil}
	h := newTestServer(nil, g).Handler()

	rec := postGeocode(t, h, `{"address": "nowhere at all"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGeocode_OutOfAreaIs422(t *testing.T) {
	g := &stubGeocoder{name: "census", result: &geocode.Result{
		Latitude: 28.5384, Longitude: -81.3789, Quality: geocode.QualityExact, Confidence: 1,
	}}
	h := newTestServer(nil, g).Handler()

	rec := postGeocode(t, h, `{"address": "400 S Orange Ave, Orlando, FL"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "outside the Georgia service area")
}

func TestHandleGeocode_ProviderExhaustionIs503(t *testing.T) {
	g := &stubGeocoder{name: "census", err: &geocode.ProviderError{
		Provider: "census", Message: "connection refused",
	}}

	// Exhaustion surfaces through the no-fallback path; the cascade itself
	// swallows provider failures and reports no match instead.
	retry := resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	invoker := geocode.NewInvoker(retry, 2)
	cascade := geocode.NewCascade([]geocode.Geocoder{g}, nil, invoker)
	resolver := service.NewResolver(cascade, invoker, nil, service.WithFallback(false))
	h := New(resolver, nil, nil).Handler()

	rec := postGeocode(t, h, `{"address": "123 Main St"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGeocode_BadRequest(t *testing.T) {
	g := &stubGeocoder{name: "census"}
	h := newTestServer(nil, g).Handler()

	rec := postGeocode(t, h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postGeocode(t, h, `{"address": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProviders(t *testing.T) {
	g := &stubGeocoder{name: "census"}
	h := newTestServer(nil, g).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Providers []geocode.Metadata `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 1)
	assert.Equal(t, "census", resp.Providers[0].Name)
}

func TestHandleStats(t *testing.T) {
	stats := &stubStats{stats: []cachestore.ProviderStats{
		{Provider: "census", CachedCount: 10},
	}}
	h := newTestServer(stats, &stubGeocoder{name: "census"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Providers []cachestore.ProviderStats `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 1)
	assert.Equal(t, int64(10), resp.Providers[0].CachedCount)
}

func TestHandleStats_BackendError(t *testing.T) {
	stats := &stubStats{err: eris.New("db down")}
	h := newTestServer(stats, &stubGeocoder{name: "census"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(nil, &stubGeocoder{name: "census"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID_Echoed(t *testing.T) {
	h := newTestServer(nil, &stubGeocoder{name: "census"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

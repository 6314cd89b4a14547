// Package server exposes geocoding resolution over HTTP. Resolution
// outcomes map to status codes: found (200), no match (404), out of the
// service area (422), provider exhaustion (503). Out-of-area failures are
// deliberately distinct from backend unavailability so clients never
// confuse a data problem with a transient one.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peachstate/votergeo/internal/cachestore"
	"github.com/peachstate/votergeo/internal/geoutil"
	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// StatsSource provides the cache rollup for the stats endpoint.
type StatsSource interface {
	Stats(ctx context.Context) ([]cachestore.ProviderStats, error)
}

// Server wires the resolver and cache introspection into an HTTP handler.
type Server struct {
	resolver *service.Resolver
	stats    StatsSource
	metadata []geocode.Metadata
}

// New creates a Server.
func New(resolver *service.Resolver, stats StatsSource, metadata []geocode.Metadata) *Server {
	return &Server{resolver: resolver, stats: stats, metadata: metadata}
}

// Handler builds the chi router with CORS, request-id, and request logging.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(requestID)
	r.Use(logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/geocode", s.handleGeocode)
	r.Get("/api/providers", s.handleProviders)
	r.Get("/api/cache/stats", s.handleStats)

	return r
}

type geocodeRequest struct {
	Address string `json:"address"`
	Force   bool   `json:"force"`
}

type geocodeResponse struct {
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Confidence     float64         `json:"confidence"`
	Quality        geocode.Quality `json:"quality"`
	MatchedAddress string          `json:"matched_address,omitempty"`
	AddressID      string          `json:"address_id,omitempty"`
	Metadata       struct {
		Cached   bool   `json:"cached"`
		Provider string `json:"provider"`
	} `json:"metadata"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	outcome, err := s.resolver.Resolve(r.Context(), req.Address, req.Force)
	if err != nil {
		var oob *geoutil.OutOfAreaError
		var pe *geocode.ProviderError
		switch {
		case errors.As(err, &oob):
			writeError(w, http.StatusUnprocessableEntity, oob.Error())
		case errors.As(err, &pe):
			writeError(w, http.StatusServiceUnavailable, "geocoding temporarily unavailable, retry later")
		default:
			zap.L().Error("geocode request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if outcome == nil {
		writeError(w, http.StatusNotFound, "no match for address")
		return
	}

	resp := geocodeResponse{
		Latitude:       outcome.Result.Latitude,
		Longitude:      outcome.Result.Longitude,
		Confidence:     outcome.Result.Confidence,
		Quality:        outcome.Result.Quality,
		MatchedAddress: outcome.Result.MatchedAddress,
		AddressID:      outcome.AddressID,
	}
	resp.Metadata.Cached = outcome.Cached
	resp.Metadata.Provider = outcome.Provider
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.metadata})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "cache statistics unavailable")
		return
	}
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		zap.L().Error("cache stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stats == nil {
		stats = []cachestore.ProviderStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": stats})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// requestID tags each request with a UUID, echoed in the X-Request-ID
// response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// logRequests emits one structured line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		id, _ := r.Context().Value(requestIDKey).(string)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", id),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

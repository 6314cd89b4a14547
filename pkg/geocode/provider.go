package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Geocoder is the contract every provider adapter satisfies. Everything
// above an adapter sees only this interface and the shared Result model;
// provider vocabulary never crosses it.
//
// Geocode returns (nil, nil) for a genuine zero-match and a *ProviderError
// for timeout, connection, non-2xx, auth/quota, or parse failures.
type Geocoder interface {
	Name() string
	ServiceType() ServiceType
	RequiresAPIKey() bool
	Configured() bool
	// RateLimitDelay is the minimum interval in seconds between calls for
	// providers without a formal quota API. Zero means unthrottled.
	RateLimitDelay() float64
	Geocode(ctx context.Context, address string) (*Result, error)
}

// BatchGeocoder is implemented by providers with a native batch endpoint
// (service type "batch"). Results align with the input slice; a nil element
// is a zero-match for that address.
type BatchGeocoder interface {
	Geocoder
	BatchGeocode(ctx context.Context, addresses []string) ([]*Result, error)
}

// ProviderError is any failure talking to a provider: network, HTTP status,
// auth, quota, or response parsing. It is the only error class the retry
// wrapper considers transient.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Metadata builds the introspection record for any Geocoder.
func ProviderMetadata(g Geocoder) Metadata {
	return Metadata{
		Name:           g.Name(),
		ServiceType:    g.ServiceType(),
		RequiresAPIKey: g.RequiresAPIKey(),
		Configured:     g.Configured(),
		RateLimitDelay: g.RateLimitDelay(),
	}
}

// SequentialBatch geocodes addresses one by one through g. It is the default
// batch behavior for individual-only providers. A per-address zero-match or
// provider error yields a nil element; errors do not abort the loop.
func SequentialBatch(ctx context.Context, g Geocoder, addresses []string) ([]*Result, error) {
	results := make([]*Result, len(addresses))
	for i, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := g.Geocode(ctx, addr)
		if err != nil {
			continue
		}
		results[i] = res
	}
	return results, nil
}

// newIntervalLimiter builds a limiter enforcing a minimum delay in seconds
// between calls. Zero or negative means no throttling.
func newIntervalLimiter(delaySeconds float64) *rate.Limiter {
	if delaySeconds <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(delaySeconds*float64(time.Second))), 1)
}

// drainBody reads a response body for inclusion in error messages, capped so
// a misbehaving provider cannot blow up logs.
func drainBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}

// defaultHTTPClient is the transport adapters use unless one is injected.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Package service implements single-address resolution: normalize, consult
// the cache, invoke providers, validate the service area, and persist the
// outcome.
package service

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/peachstate/votergeo/internal/geoutil"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// AddressUpserter is the downstream collaborator that stores canonical
// address records. It returns the stored address identity.
type AddressUpserter interface {
	Upsert(ctx context.Context, c Components, result *geocode.Result) (string, error)
}

// Outcome is a successful resolution. A nil *Outcome with a nil error means
// no provider matched the address.
type Outcome struct {
	Result    *geocode.Result `json:"result"`
	Provider  string          `json:"provider"`
	Cached    bool            `json:"cached"`
	AddressID string          `json:"address_id,omitempty"`
}

// Resolver is the entry point the HTTP layer calls for one address.
type Resolver struct {
	cascade   *geocode.Cascade
	invoker   *geocode.Invoker
	cache     geocode.CacheStore
	addresses AddressUpserter
	fallback  bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFallback routes cache misses through the full provider cascade
// instead of only the primary provider.
func WithFallback(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.fallback = enabled
	}
}

// WithAddressUpserter attaches the canonical-address collaborator. Without
// one, resolution still works; results are only cached.
func WithAddressUpserter(u AddressUpserter) ResolverOption {
	return func(r *Resolver) {
		r.addresses = u
	}
}

// NewResolver creates a Resolver. The cascade supplies the provider order;
// its head is the primary provider for cache lookups and non-fallback
// resolution.
func NewResolver(cascade *geocode.Cascade, invoker *geocode.Invoker, cache geocode.CacheStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{cascade: cascade, invoker: invoker, cache: cache}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve geocodes one free-form address. force bypasses the cache read and
// overwrites the entry on success. Returns (nil, nil) for no match, an
// *geoutil.OutOfAreaError for coordinates outside the service area, and the
// provider's *geocode.ProviderError once the retry budget is exhausted.
func (r *Resolver) Resolve(ctx context.Context, address string, force bool) (*Outcome, error) {
	normalized := geocode.Normalize(address)
	if normalized == "" {
		return nil, nil
	}

	providers := r.cascade.Providers()
	if len(providers) == 0 {
		return nil, eris.New("service: no providers configured")
	}
	primary := providers[0]

	if !force && r.cache != nil {
		cached, err := r.cache.Lookup(ctx, primary.Name(), normalized)
		if err == nil {
			return &Outcome{Result: cached, Provider: primary.Name(), Cached: true}, nil
		}
		if !errors.Is(err, geocode.ErrCacheMiss) {
			zap.L().Warn("resolver: cache lookup failed",
				zap.String("provider", primary.Name()),
				zap.Error(err),
			)
		}
	}

	providerName, result, err := r.geocode(ctx, primary, normalized, force)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if err := geoutil.ValidateGeorgiaCoordinates(result.Latitude, result.Longitude); err != nil {
		// A data violation, not a transient fault: no fallback, no retry.
		return nil, err
	}

	outcome := &Outcome{Result: result, Provider: providerName}

	if r.addresses != nil {
		id, err := r.addresses.Upsert(ctx, ParseComponents(result.MatchedAddress), result)
		if err != nil {
			return nil, eris.Wrap(err, "service: canonical address upsert")
		}
		outcome.AddressID = id
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, providerName, normalized, result); err != nil {
			zap.L().Warn("resolver: cache store failed",
				zap.String("provider", providerName),
				zap.Error(err),
			)
		}
	}

	return outcome, nil
}

// geocode performs the live lookup: the full cascade when fallback is
// enabled, otherwise a retry-bounded call to the primary provider. force
// propagates so a forced resolution never reads the cascade's cache either.
func (r *Resolver) geocode(ctx context.Context, primary geocode.Geocoder, normalized string, force bool) (string, *geocode.Result, error) {
	if r.fallback {
		return r.cascade.Geocode(ctx, normalized, force)
	}

	result, err := r.invoker.Geocode(ctx, primary, normalized)
	if err != nil {
		return "", nil, err
	}
	return primary.Name(), result, nil
}

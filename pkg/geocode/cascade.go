package geocode

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by CacheStore.Lookup when no usable entry exists
// for a (provider, normalized address) pair.
var ErrCacheMiss = eris.New("geocode: cache miss")

// CacheStore persists results keyed by (provider, normalized address).
// Store must be an idempotent upsert so concurrent resolutions for the same
// address converge without locking.
type CacheStore interface {
	Lookup(ctx context.Context, provider, normalizedAddress string) (*Result, error)
	Store(ctx context.Context, provider, normalizedAddress string, result *Result) error
}

// Cascade walks an ordered provider list for one address: cache first,
// live call on miss, early exit on an exact match, otherwise best of all
// candidates. Providers are always consulted sequentially in priority order
// so the early exit stays deterministic; lower-priority providers are
// typically slower or paid and should only run when needed.
type Cascade struct {
	providers []Geocoder
	cache     CacheStore
	invoker   *Invoker
}

// NewCascade creates a Cascade. A nil cache disables cache consultation,
// which tests use; production always passes a store.
func NewCascade(providers []Geocoder, cache CacheStore, invoker *Invoker) *Cascade {
	return &Cascade{providers: providers, cache: cache, invoker: invoker}
}

// Providers returns the active provider list in priority order.
func (c *Cascade) Providers() []Geocoder { return c.providers }

// Geocode resolves one normalized address through the cascade. It returns
// the winning provider name and result, or ("", nil) when every provider
// errored or reported no match. A provider failure is logged and skipped,
// never fatal; only context cancellation aborts the walk. force skips every
// cache read so forced re-resolution always reaches the providers; fresh
// results are still written back.
func (c *Cascade) Geocode(ctx context.Context, normalizedAddress string, force bool) (string, *Result, error) {
	var bestProvider string
	var best *Result

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		result, fresh, err := c.attempt(ctx, p, normalizedAddress, force)
		if err != nil {
			zap.L().Warn("cascade: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result == nil {
			continue
		}

		if fresh && c.cache != nil {
			if err := c.cache.Store(ctx, p.Name(), normalizedAddress, result); err != nil {
				zap.L().Warn("cascade: cache store failed",
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
			}
		}

		if result.Quality == QualityExact {
			return p.Name(), result, nil
		}
		if result.Better(best) {
			bestProvider, best = p.Name(), result
		}
	}

	return bestProvider, best, nil
}

// attempt produces a result for one provider, cache first unless forced.
// fresh reports whether the result came from a live call and still needs a
// cache write.
func (c *Cascade) attempt(ctx context.Context, p Geocoder, normalizedAddress string, force bool) (result *Result, fresh bool, err error) {
	if c.cache != nil && !force {
		cached, err := c.cache.Lookup(ctx, p.Name(), normalizedAddress)
		if err == nil {
			return cached, false, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			zap.L().Debug("cascade: cache lookup failed",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
		}
	}

	result, err = c.invoker.Geocode(ctx, p, normalizedAddress)
	if err != nil {
		return nil, false, err
	}
	return result, result != nil, nil
}

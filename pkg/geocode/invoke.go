package geocode

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/peachstate/votergeo/internal/resilience"
)

// Invoker wraps provider calls with a per-provider capacity gate and retry
// with exponential backoff. The gate caps in-flight calls to one provider
// across the whole process; retries apply solely to *ProviderError. A nil
// result (explicit no-match) is data and returns immediately.
type Invoker struct {
	retry         resilience.RetryConfig
	maxConcurrent int64

	mu    sync.Mutex
	gates map[string]*semaphore.Weighted
}

// NewInvoker creates an Invoker. maxConcurrent bounds simultaneous in-flight
// calls per provider; values below 1 default to 4.
func NewInvoker(retry resilience.RetryConfig, maxConcurrent int64) *Invoker {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	return &Invoker{
		retry:         retry,
		maxConcurrent: maxConcurrent,
		gates:         make(map[string]*semaphore.Weighted),
	}
}

// gate returns the capacity gate for a provider, creating it on first use.
func (v *Invoker) gate(provider string) *semaphore.Weighted {
	v.mu.Lock()
	defer v.mu.Unlock()
	g, ok := v.gates[provider]
	if !ok {
		g = semaphore.NewWeighted(v.maxConcurrent)
		v.gates[provider] = g
	}
	return g
}

// Geocode calls g.Geocode through the gate with retries. On exhaustion the
// last *ProviderError is returned as-is, provider identity and message
// preserved. The gate is held only during the call, not across backoff
// sleeps.
func (v *Invoker) Geocode(ctx context.Context, g Geocoder, address string) (*Result, error) {
	gate := v.gate(g.Name())

	cfg := v.retry
	cfg.ShouldRetry = func(err error) bool {
		var pe *ProviderError
		return errors.As(err, &pe)
	}
	cfg.OnRetry = resilience.RetryLogger(g.Name(), "geocode")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		if err := gate.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer gate.Release(1)
		return g.Geocode(ctx, address)
	})
}

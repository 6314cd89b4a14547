package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/peachstate/votergeo/internal/resilience"
)

// fastRetry keeps test retries from sleeping.
func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// scriptedGeocoder replays a fixed sequence of responses, recording how many
// times it was invoked. After the script runs out it repeats the last step.
type scriptedGeocoder struct {
	name  string
	steps []scriptedStep

	mu    sync.Mutex
	calls int
}

type scriptedStep struct {
	result *Result
	err    error
}

func (s *scriptedGeocoder) Name() string             { return s.name }
func (s *scriptedGeocoder) ServiceType() ServiceType { return ServiceIndividual }
func (s *scriptedGeocoder) RequiresAPIKey() bool     { return false }
func (s *scriptedGeocoder) Configured() bool         { return true }
func (s *scriptedGeocoder) RateLimitDelay() float64  { return 0 }

func (s *scriptedGeocoder) Geocode(ctx context.Context, _ string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	return step.result, step.err
}

func (s *scriptedGeocoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memoryCache is an in-memory CacheStore for cascade and resolver tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*Result
	lookups int
	stores  int
	// failStore makes every Store call fail, for degraded-cache paths.
	failStore error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*Result)}
}

func (m *memoryCache) key(provider, addr string) string { return provider + "|" + addr }

func (m *memoryCache) Lookup(_ context.Context, provider, normalizedAddress string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if r, ok := m.entries[m.key(provider, normalizedAddress)]; ok {
		return r, nil
	}
	return nil, ErrCacheMiss
}

func (m *memoryCache) Store(_ context.Context, provider, normalizedAddress string, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.failStore != nil {
		return m.failStore
	}
	m.entries[m.key(provider, normalizedAddress)] = result
	return nil
}

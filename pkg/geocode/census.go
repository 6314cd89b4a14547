package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCensusURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"

	// The Census one-line endpoint returns parcel-level matches without a
	// native score, so matches carry a fixed confidence.
	censusConfidence = 0.9
)

// CensusConfig configures the US Census Bureau geocoder. The public endpoint
// needs no credentials.
type CensusConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Benchmark   string `yaml:"benchmark" mapstructure:"benchmark"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Census geocodes against the Census Bureau one-line address endpoint.
type Census struct {
	cfg        CensusConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewCensus builds a Census adapter. The adapter is always configured when
// enabled; there are no required credentials.
func NewCensus(cfg CensusConfig) *Census {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCensusURL
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = censusBenchmark
	}
	return &Census{
		cfg:        cfg,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(0),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (c *Census) WithHTTPClient(hc *http.Client) *Census {
	c.httpClient = hc
	return c
}

func (c *Census) Name() string             { return "census" }
func (c *Census) ServiceType() ServiceType { return ServiceIndividual }
func (c *Census) RequiresAPIKey() bool     { return false }
func (c *Census) Configured() bool         { return c.cfg.Enabled }
func (c *Census) RateLimitDelay() float64  { return 0 }

type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// Geocode implements Geocoder via the one-line address endpoint.
func (c *Census) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "census", Message: "rate limit wait", Err: err}
	}

	params := url.Values{
		"address":   {address},
		"benchmark": {c.cfg.Benchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: "census", Message: "build request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "census", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "census", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "census", Message: "read body", Err: err}
	}

	var cr censusResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, &ProviderError{Provider: "census", Message: "parse response", Err: err}
	}

	if len(cr.Result.AddressMatches) == 0 {
		return nil, nil
	}

	match := cr.Result.AddressMatches[0]
	return &Result{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		Confidence:     censusConfidence,
		Quality:        QualityExact,
		MatchedAddress: match.MatchedAddress,
		Raw:            json.RawMessage(body),
	}, nil
}

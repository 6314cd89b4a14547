package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGeocodioURL       = "https://api.geocod.io/v1.7/geocode"
	defaultGeocodioBatchSize = 1000
)

// GeocodioConfig configures the Geocodio API. APIKey is required; BatchSize
// caps the addresses sent per native batch request.
type GeocodioConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Geocodio geocodes against the Geocodio API, with native batched requests.
type Geocodio struct {
	cfg        GeocodioConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeocodio builds a Geocodio adapter.
func NewGeocodio(cfg GeocodioConfig) *Geocodio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeocodioURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultGeocodioBatchSize
	}
	return &Geocodio{
		cfg:        cfg,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(0),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (g *Geocodio) WithHTTPClient(hc *http.Client) *Geocodio {
	g.httpClient = hc
	return g
}

func (g *Geocodio) Name() string             { return "geocodio" }
func (g *Geocodio) ServiceType() ServiceType { return ServiceBatch }
func (g *Geocodio) RequiresAPIKey() bool     { return true }
func (g *Geocodio) Configured() bool         { return g.cfg.Enabled && g.cfg.APIKey != "" }
func (g *Geocodio) RateLimitDelay() float64  { return 0 }

type geocodioEntry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Accuracy         float64 `json:"accuracy"`
	AccuracyType     string  `json:"accuracy_type"`
	FormattedAddress string  `json:"formatted_address"`
}

type geocodioResponse struct {
	Results []geocodioEntry `json:"results"`
	Error   string          `json:"error"`
}

// geocodioBatchResponse wraps one inner response per submitted address, in
// submission order.
type geocodioBatchResponse struct {
	Results []struct {
		Response geocodioResponse `json:"response"`
	} `json:"results"`
}

// Geocode implements Geocoder via the single-address endpoint.
func (g *Geocodio) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "geocodio", Message: "rate limit wait", Err: err}
	}

	params := url.Values{
		"q":       {address},
		"api_key": {g.cfg.APIKey},
		"limit":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: "geocodio", Message: "build request", Err: err}
	}

	body, perr := g.do(req)
	if perr != nil {
		return nil, perr
	}

	var gr geocodioResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, &ProviderError{Provider: "geocodio", Message: "parse response", Err: err}
	}
	if gr.Error != "" {
		return nil, &ProviderError{Provider: "geocodio", Message: gr.Error}
	}
	if len(gr.Results) == 0 {
		return nil, nil
	}

	res := geocodioResult(gr.Results[0])
	res.Raw = json.RawMessage(body)
	return res, nil
}

// BatchGeocode implements BatchGeocoder via the native batch endpoint,
// chunked to the configured batch size. Results align with addresses.
func (g *Geocodio) BatchGeocode(ctx context.Context, addresses []string) ([]*Result, error) {
	results := make([]*Result, len(addresses))

	for start := 0; start < len(addresses); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: "geocodio", Message: "rate limit wait", Err: err}
		}

		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, &ProviderError{Provider: "geocodio", Message: "marshal batch", Err: err}
		}

		params := url.Values{"api_key": {g.cfg.APIKey}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.cfg.BaseURL+"?"+params.Encode(), bytes.NewReader(payload))
		if err != nil {
			return nil, &ProviderError{Provider: "geocodio", Message: "build batch request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		body, perr := g.do(req)
		if perr != nil {
			return nil, perr
		}

		var br geocodioBatchResponse
		if err := json.Unmarshal(body, &br); err != nil {
			return nil, &ProviderError{Provider: "geocodio", Message: "parse batch response", Err: err}
		}
		if len(br.Results) != len(chunk) {
			return nil, &ProviderError{Provider: "geocodio", Message: "batch response length mismatch"}
		}

		for i, wrapped := range br.Results {
			if len(wrapped.Response.Results) == 0 {
				continue
			}
			results[start+i] = geocodioResult(wrapped.Response.Results[0])
		}
	}

	return results, nil
}

func (g *Geocodio) do(req *http.Request) ([]byte, *ProviderError) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "geocodio", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "geocodio", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "geocodio", Message: "read body", Err: err}
	}
	return body, nil
}

func geocodioResult(e geocodioEntry) *Result {
	return &Result{
		Latitude:       e.Location.Lat,
		Longitude:      e.Location.Lng,
		Confidence:     clampConfidence(e.Accuracy),
		Quality:        geocodioQuality(e.AccuracyType),
		MatchedAddress: e.FormattedAddress,
	}
}

// geocodioQuality maps accuracy_type to the shared taxonomy. Geocodio also
// reports a numeric accuracy in [0,1], which passes through as confidence.
func geocodioQuality(accuracyType string) Quality {
	switch accuracyType {
	case "rooftop", "point":
		return QualityExact
	case "range_interpolation", "nearest_rooftop_match", "intersection":
		return QualityInterpolated
	default:
		return QualityApproximate
	}
}

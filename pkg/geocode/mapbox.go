package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMapboxURL       = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	defaultMapboxBatchSize = 50
)

// MapboxConfig configures the Mapbox Geocoding API. AccessToken is required;
// BatchSize caps queries per native batch request (the v5 batch endpoint
// accepts at most 50).
type MapboxConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Mapbox geocodes against the Mapbox forward-geocoding API, with native
// semicolon-batched requests.
type Mapbox struct {
	cfg        MapboxConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMapbox builds a Mapbox adapter.
func NewMapbox(cfg MapboxConfig) *Mapbox {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMapboxURL
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > defaultMapboxBatchSize {
		cfg.BatchSize = defaultMapboxBatchSize
	}
	return &Mapbox{
		cfg:        cfg,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(0),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (m *Mapbox) WithHTTPClient(hc *http.Client) *Mapbox {
	m.httpClient = hc
	return m
}

func (m *Mapbox) Name() string             { return "mapbox" }
func (m *Mapbox) ServiceType() ServiceType { return ServiceBatch }
func (m *Mapbox) RequiresAPIKey() bool     { return true }
func (m *Mapbox) Configured() bool         { return m.cfg.Enabled && m.cfg.AccessToken != "" }
func (m *Mapbox) RateLimitDelay() float64  { return 0 }

type mapboxFeature struct {
	Center     []float64 `json:"center"` // [lon, lat]
	PlaceName  string    `json:"place_name"`
	Relevance  float64   `json:"relevance"`
	Properties struct {
		Accuracy string `json:"accuracy"`
	} `json:"properties"`
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

// Geocode implements Geocoder via the forward endpoint.
func (m *Mapbox) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "mapbox", Message: "rate limit wait", Err: err}
	}

	body, perr := m.get(ctx, url.PathEscape(address))
	if perr != nil {
		return nil, perr
	}

	var mr mapboxResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, &ProviderError{Provider: "mapbox", Message: "parse response", Err: err}
	}
	if len(mr.Features) == 0 {
		return nil, nil
	}

	res, err := mapboxResult(mr.Features[0])
	if err != nil {
		return nil, err
	}
	res.Raw = json.RawMessage(body)
	return res, nil
}

// BatchGeocode implements BatchGeocoder via the semicolon-separated batch
// form of the forward endpoint, chunked to the configured batch size.
func (m *Mapbox) BatchGeocode(ctx context.Context, addresses []string) ([]*Result, error) {
	results := make([]*Result, len(addresses))

	for start := 0; start < len(addresses); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		if err := m.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: "mapbox", Message: "rate limit wait", Err: err}
		}

		escaped := make([]string, len(chunk))
		for i, addr := range chunk {
			// Semicolons separate batch queries, so they cannot appear
			// inside one.
			escaped[i] = url.PathEscape(strings.ReplaceAll(addr, ";", " "))
		}

		body, perr := m.get(ctx, strings.Join(escaped, ";"))
		if perr != nil {
			return nil, perr
		}

		// A single query returns one FeatureCollection, a batch returns an
		// array of them.
		var batch []mapboxResponse
		if len(chunk) == 1 {
			var single mapboxResponse
			if err := json.Unmarshal(body, &single); err != nil {
				return nil, &ProviderError{Provider: "mapbox", Message: "parse batch response", Err: err}
			}
			batch = []mapboxResponse{single}
		} else if err := json.Unmarshal(body, &batch); err != nil {
			return nil, &ProviderError{Provider: "mapbox", Message: "parse batch response", Err: err}
		}
		if len(batch) != len(chunk) {
			return nil, &ProviderError{Provider: "mapbox", Message: "batch response length mismatch"}
		}

		for i, mr := range batch {
			if len(mr.Features) == 0 {
				continue
			}
			res, err := mapboxResult(mr.Features[0])
			if err != nil {
				return nil, err
			}
			results[start+i] = res
		}
	}

	return results, nil
}

func (m *Mapbox) get(ctx context.Context, query string) ([]byte, *ProviderError) {
	params := url.Values{
		"access_token": {m.cfg.AccessToken},
		"limit":        {"1"},
	}
	reqURL := fmt.Sprintf("%s/%s.json?%s", m.cfg.BaseURL, query, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: "mapbox", Message: "build request", Err: err}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "mapbox", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "mapbox", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "mapbox", Message: "read body", Err: err}
	}
	return body, nil
}

func mapboxResult(f mapboxFeature) (*Result, error) {
	if len(f.Center) != 2 {
		return nil, &ProviderError{Provider: "mapbox", Message: "feature missing center coordinates"}
	}
	return &Result{
		Latitude:       f.Center[1],
		Longitude:      f.Center[0],
		Confidence:     clampConfidence(f.Relevance),
		Quality:        mapboxQuality(f.Properties.Accuracy),
		MatchedAddress: f.PlaceName,
	}, nil
}

// mapboxQuality maps the feature accuracy property to the shared taxonomy;
// the relevance score passes through as confidence.
func mapboxQuality(accuracy string) Quality {
	switch accuracy {
	case "rooftop", "parcel", "point":
		return QualityExact
	case "interpolated":
		return QualityInterpolated
	default:
		return QualityApproximate
	}
}

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

const defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleConfig configures the Google Geocoding API. APIKey is required.
type GoogleConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Google geocodes against the Google Geocoding API.
type Google struct {
	cfg        GoogleConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogle builds a Google adapter. Without an API key the adapter reports
// Configured() == false and the registry leaves it out of the active list.
func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleURL
	}
	return &Google{
		cfg:        cfg,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(0),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (g *Google) WithHTTPClient(hc *http.Client) *Google {
	g.httpClient = hc
	return g
}

func (g *Google) Name() string             { return "google" }
func (g *Google) ServiceType() ServiceType { return ServiceIndividual }
func (g *Google) RequiresAPIKey() bool     { return true }
func (g *Google) Configured() bool         { return g.cfg.Enabled && g.cfg.APIKey != "" }
func (g *Google) RateLimitDelay() float64  { return 0 }

type googleResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Geocode implements Geocoder. Google multiplexes errors through the status
// field: ZERO_RESULTS is a no-match value, everything else non-OK is a
// provider failure.
func (g *Google) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "google", Message: "rate limit wait", Err: err}
	}

	params := url.Values{
		"address": {address},
		"key":     {g.cfg.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: "build request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "google", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: "read body", Err: err}
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, &ProviderError{Provider: "google", Message: "parse response", Err: err}
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		msg := gr.Status
		if gr.ErrorMessage != "" {
			msg += ": " + gr.ErrorMessage
		}
		return nil, &ProviderError{Provider: "google", Message: msg, StatusCode: resp.StatusCode}
	}

	if len(gr.Results) == 0 {
		return nil, nil
	}

	first := gr.Results[0]
	quality, confidence := googleQuality(first.Geometry.LocationType)
	return &Result{
		Latitude:       first.Geometry.Location.Lat,
		Longitude:      first.Geometry.Location.Lng,
		Confidence:     confidence,
		Quality:        quality,
		MatchedAddress: first.FormattedAddress,
		Raw:            json.RawMessage(body),
	}, nil
}

// googleQuality maps location_type to the shared taxonomy with fixed
// per-category confidences; Google reports no numeric score.
func googleQuality(locType string) (Quality, float64) {
	switch locType {
	case "ROOFTOP":
		return QualityExact, 1.0
	case "RANGE_INTERPOLATED":
		return QualityInterpolated, 0.8
	case "GEOMETRIC_CENTER":
		return QualityApproximate, 0.6
	default:
		return QualityApproximate, 0.4
	}
}

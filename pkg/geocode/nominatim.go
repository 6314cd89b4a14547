package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

	// The public OSM instance asks for at most one request per second.
	nominatimPublicDelay = 1.0
)

// NominatimConfig configures an OSM Nominatim instance. Email identifies the
// caller to the public instance per its usage policy; a self-hosted BaseURL
// lifts the rate limit.
type NominatimConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Email       string `yaml:"email" mapstructure:"email"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Nominatim geocodes against an OSM Nominatim search endpoint.
type Nominatim struct {
	cfg        NominatimConfig
	delay      float64
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatim builds a Nominatim adapter. Pointing BaseURL at a self-hosted
// instance removes the public-instance pacing.
func NewNominatim(cfg NominatimConfig) *Nominatim {
	delay := 0.0
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNominatimURL
		delay = nominatimPublicDelay
	}
	return &Nominatim{
		cfg:        cfg,
		delay:      delay,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(delay),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (n *Nominatim) WithHTTPClient(hc *http.Client) *Nominatim {
	n.httpClient = hc
	return n
}

func (n *Nominatim) Name() string             { return "nominatim" }
func (n *Nominatim) ServiceType() ServiceType { return ServiceIndividual }
func (n *Nominatim) RequiresAPIKey() bool     { return false }
func (n *Nominatim) Configured() bool         { return n.cfg.Enabled }
func (n *Nominatim) RateLimitDelay() float64  { return n.delay }

// nominatimPlace mirrors the relevant parts of the jsonv2 search payload.
// Lat/lon arrive as strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	AddressType string  `json:"addresstype"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Geocode implements Geocoder via the search endpoint.
func (n *Nominatim) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "rate limit wait", Err: err}
	}

	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if n.cfg.Email != "" {
		params.Set("email", n.cfg.Email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "build request", Err: err}
	}
	req.Header.Set("User-Agent", "votergeo/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "nominatim", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "read body", Err: err}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "parse response", Err: err}
	}

	if len(places) == 0 {
		return nil, nil
	}

	place := places[0]
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, &ProviderError{Provider: "nominatim", Message: "parse coordinates", Err: errors.Join(latErr, lonErr)}
	}

	return &Result{
		Latitude:       lat,
		Longitude:      lon,
		Confidence:     clampConfidence(place.Importance),
		Quality:        nominatimQuality(place),
		MatchedAddress: place.DisplayName,
		Raw:            json.RawMessage(body),
	}, nil
}

// nominatimQuality maps OSM place typing to the shared taxonomy: addressable
// buildings are exact, road-level hits are interpolated, anything coarser is
// approximate.
func nominatimQuality(p nominatimPlace) Quality {
	t := p.AddressType
	if t == "" {
		t = p.Type
	}
	switch t {
	case "house", "building", "residential", "apartments":
		return QualityExact
	case "road", "street", "highway":
		return QualityInterpolated
	default:
		return QualityApproximate
	}
}

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
	defaultPhotonURL = "https://photon.komoot.io/api"

	// Courtesy pacing against the public komoot instance.
	photonPublicDelay = 0.2
)

// PhotonConfig configures a Photon (komoot) instance. No credentials are
// needed; a self-hosted BaseURL lifts the public-instance pacing.
type PhotonConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Photon geocodes against a Photon search endpoint.
type Photon struct {
	cfg        PhotonConfig
	delay      float64
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPhoton builds a Photon adapter.
func NewPhoton(cfg PhotonConfig) *Photon {
	delay := 0.0
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPhotonURL
		delay = photonPublicDelay
	}
	return &Photon{
		cfg:        cfg,
		delay:      delay,
		httpClient: defaultHTTPClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		limiter:    newIntervalLimiter(delay),
	}
}

// WithHTTPClient overrides the transport, for tests.
func (p *Photon) WithHTTPClient(hc *http.Client) *Photon {
	p.httpClient = hc
	return p
}

func (p *Photon) Name() string             { return "photon" }
func (p *Photon) ServiceType() ServiceType { return ServiceIndividual }
func (p *Photon) RequiresAPIKey() bool     { return false }
func (p *Photon) Configured() bool         { return p.cfg.Enabled }
func (p *Photon) RateLimitDelay() float64  { return p.delay }

// photonResponse mirrors the GeoJSON FeatureCollection Photon returns.
type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Type        string `json:"type"`
			Name        string `json:"name"`
			HouseNumber string `json:"housenumber"`
			Street      string `json:"street"`
			City        string `json:"city"`
			State       string `json:"state"`
			Postcode    string `json:"postcode"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode implements Geocoder via the search endpoint.
func (p *Photon) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: "photon", Message: "rate limit wait", Err: err}
	}

	params := url.Values{
		"q":     {address},
		"limit": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: "photon", Message: "build request", Err: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "photon", Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "photon", Message: drainBody(resp.Body), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "photon", Message: "read body", Err: err}
	}

	var pr photonResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, &ProviderError{Provider: "photon", Message: "parse response", Err: err}
	}
	if len(pr.Features) == 0 {
		return nil, nil
	}

	f := pr.Features[0]
	if len(f.Geometry.Coordinates) != 2 {
		return nil, &ProviderError{Provider: "photon", Message: "feature missing coordinates"}
	}

	quality, confidence := photonQuality(f.Properties.Type)
	return &Result{
		Latitude:       f.Geometry.Coordinates[1],
		Longitude:      f.Geometry.Coordinates[0],
		Confidence:     confidence,
		Quality:        quality,
		MatchedAddress: photonAddress(f.Properties.HouseNumber, f.Properties.Street, f.Properties.Name,
			f.Properties.City, f.Properties.State, f.Properties.Postcode),
		Raw: json.RawMessage(body),
	}, nil
}

// photonQuality maps the OSM result type to the shared taxonomy. Photon
// reports no numeric score, so confidence is fixed per category.
func photonQuality(resultType string) (Quality, float64) {
	switch resultType {
	case "house":
		return QualityExact, 0.9
	case "street":
		return QualityInterpolated, 0.7
	default:
		return QualityApproximate, 0.5
	}
}

// photonAddress assembles a display address from the feature properties.
func photonAddress(houseNumber, street, name, city, state, postcode string) string {
	line := street
	if houseNumber != "" && street != "" {
		line = houseNumber + " " + street
	} else if line == "" {
		line = name
	}

	out := line
	for _, part := range []string{city, state, postcode} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

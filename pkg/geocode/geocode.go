// Package geocode resolves postal addresses to WGS84 coordinates through a
// set of interchangeable third-party providers, normalized to one result
// model and selected through a priority-ordered fallback cascade.
package geocode

import "encoding/json"

// Quality is the coarse accuracy classification of a geocode result. The
// order Exact > Interpolated > Approximate is fixed and identical across
// every provider; it drives both the cascade's early exit and best-of
// selection.
type Quality string

const (
	QualityExact        Quality = "exact"
	QualityInterpolated Quality = "interpolated"
	QualityApproximate  Quality = "approximate"
)

// Rank returns the ordinal position of q, higher is better. Unknown values
// rank below Approximate so a malformed cached entry can never win.
func (q Quality) Rank() int {
	switch q {
	case QualityExact:
		return 3
	case QualityInterpolated:
		return 2
	case QualityApproximate:
		return 1
	default:
		return 0
	}
}

// Result is an immutable geocoding outcome. A nil *Result means the provider
// explicitly reported zero matches; that is data, not an error.
type Result struct {
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Confidence     float64         `json:"confidence"`
	Quality        Quality         `json:"quality"`
	MatchedAddress string          `json:"matched_address,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// Better reports whether r should be preferred over other when picking the
// best of several candidates: higher quality rank wins, confidence breaks
// ties.
func (r *Result) Better(other *Result) bool {
	if other == nil {
		return true
	}
	if r.Quality.Rank() != other.Quality.Rank() {
		return r.Quality.Rank() > other.Quality.Rank()
	}
	return r.Confidence > other.Confidence
}

// clampConfidence forces a provider-reported score into [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ServiceType distinguishes providers with a native batch endpoint from
// those that only geocode one address per request.
type ServiceType string

const (
	ServiceIndividual ServiceType = "individual"
	ServiceBatch      ServiceType = "batch"
)

// Metadata describes a provider for operator introspection. It plays no part
// in resolution.
type Metadata struct {
	Name           string      `json:"name" yaml:"name"`
	ServiceType    ServiceType `json:"service_type" yaml:"service_type"`
	RequiresAPIKey bool        `json:"requires_api_key" yaml:"requires_api_key"`
	Configured     bool        `json:"configured" yaml:"configured"`
	RateLimitDelay float64     `json:"rate_limit_delay" yaml:"rate_limit_delay"`
}

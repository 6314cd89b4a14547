package geocode

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ProvidersConfig aggregates the per-provider configurations plus the
// cascade priority order, highest priority first.
type ProvidersConfig struct {
	Order     []string        `yaml:"order" mapstructure:"order"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Geocodio  GeocodioConfig  `yaml:"geocodio" mapstructure:"geocodio"`
	Mapbox    MapboxConfig    `yaml:"mapbox" mapstructure:"mapbox"`
	Photon    PhotonConfig    `yaml:"photon" mapstructure:"photon"`
}

// DefaultOrder is the cascade priority when none is configured:
// authoritative and free first, paid providers last.
var DefaultOrder = []string{"census", "nominatim", "photon", "geocodio", "mapbox", "google"}

// factories is the closed provider-name set. Dispatch is a static map, not
// plugin discovery.
var factories = map[string]func(ProvidersConfig) Geocoder{
	"census":    func(c ProvidersConfig) Geocoder { return NewCensus(c.Census) },
	"nominatim": func(c ProvidersConfig) Geocoder { return NewNominatim(c.Nominatim) },
	"google":    func(c ProvidersConfig) Geocoder { return NewGoogle(c.Google) },
	"geocodio":  func(c ProvidersConfig) Geocoder { return NewGeocodio(c.Geocodio) },
	"mapbox":    func(c ProvidersConfig) Geocoder { return NewMapbox(c.Mapbox) },
	"photon":    func(c ProvidersConfig) Geocoder { return NewPhoton(c.Photon) },
}

// BuildProviders constructs the active provider list in cascade order. A
// provider missing required credentials is excluded here, never raised at
// call time. An unknown name in the order is a configuration error.
func BuildProviders(cfg ProvidersConfig) ([]Geocoder, error) {
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	var active []Geocoder
	for _, name := range order {
		factory, ok := factories[name]
		if !ok {
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
		g := factory(cfg)
		if !g.Configured() {
			zap.L().Info("geocode: provider not configured, excluding",
				zap.String("provider", name),
				zap.Bool("requires_api_key", g.RequiresAPIKey()),
			)
			continue
		}
		active = append(active, g)
	}
	return active, nil
}

// AllMetadata returns introspection records for every known provider in
// cascade order, including unconfigured ones.
func AllMetadata(cfg ProvidersConfig) ([]Metadata, error) {
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	metas := make([]Metadata, 0, len(order))
	for _, name := range order {
		factory, ok := factories[name]
		if !ok {
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
		metas = append(metas, ProviderMetadata(factory(cfg)))
	}
	return metas, nil
}

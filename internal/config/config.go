// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peachstate/votergeo/internal/resilience"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Providers geocode.ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Resolver  ResolverConfig          `yaml:"resolver" mapstructure:"resolver"`
	Retry     resilience.RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig            `yaml:"server" mapstructure:"server"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the geocode cache backend. MaxAgeDays bounds entry
// staleness on lookup; zero means entries never expire.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxAgeDays  int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// ResolverConfig configures single-address resolution behavior.
type ResolverConfig struct {
	// Fallback routes cache misses through the full provider cascade
	// instead of only the primary provider.
	Fallback bool `yaml:"fallback" mapstructure:"fallback"`

	// MaxConcurrentPerProvider caps in-flight calls to any one provider
	// across the whole process.
	MaxConcurrentPerProvider int64 `yaml:"max_concurrent_per_provider" mapstructure:"max_concurrent_per_provider"`

	// BatchWorkers bounds parallel address resolutions in batch mode.
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VOTERGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "postgres")
	v.SetDefault("cache.max_age_days", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("resolver.fallback", true)
	v.SetDefault("resolver.max_concurrent_per_provider", 4)
	v.SetDefault("resolver.batch_workers", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "500ms")
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("providers.order", geocode.DefaultOrder)
	v.SetDefault("providers.census.enabled", true)
	v.SetDefault("providers.census.timeout_secs", 10)
	v.SetDefault("providers.nominatim.enabled", true)
	v.SetDefault("providers.nominatim.timeout_secs", 10)
	v.SetDefault("providers.photon.enabled", true)
	v.SetDefault("providers.photon.timeout_secs", 10)
	v.SetDefault("providers.google.enabled", true)
	v.SetDefault("providers.google.timeout_secs", 10)
	v.SetDefault("providers.geocodio.enabled", true)
	v.SetDefault("providers.geocodio.timeout_secs", 30)
	v.SetDefault("providers.geocodio.batch_size", 1000)
	v.SetDefault("providers.mapbox.enabled", true)
	v.SetDefault("providers.mapbox.timeout_secs", 30)
	v.SetDefault("providers.mapbox.batch_size", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment variable the service reads
const EnvPrefix = "PLACEAGG"

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Geocode     GeocodeConfig     `mapstructure:"geocode"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Connectors  []ConnectorConfig `mapstructure:"connectors"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GeocodeConfig holds location resolver configuration
type GeocodeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// AggregationConfig holds engine configuration
type AggregationConfig struct {
	SoftTimeout       time.Duration `mapstructure:"soft_timeout"`
	EnrichConcurrency int           `mapstructure:"enrich_concurrency"`
	ResultLimit       int           `mapstructure:"result_limit"`
	Match             MatchConfig   `mapstructure:"match"`
	Debug             bool          `mapstructure:"debug"`
}

// MatchConfig controls cross-provider matching
type MatchConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	TitleThreshold    float64 `mapstructure:"title_threshold"`
	RadiusMeters      float64 `mapstructure:"radius_meters"`
	FuzzyEditDistance int     `mapstructure:"fuzzy_edit_distance"`
}

// ConnectorConfig registers one connector. List order is merge precedence.
type ConnectorConfig struct {
	Name          string        `mapstructure:"name"`
	Search        bool          `mapstructure:"search"`
	Enrich        bool          `mapstructure:"enrich"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// ProvidersConfig holds credentials and endpoints for every provider
type ProvidersConfig struct {
	Geoapify     ProviderConfig `mapstructure:"geoapify"`
	SerpApi      ProviderConfig `mapstructure:"serpapi"`
	GooglePlaces ProviderConfig `mapstructure:"googleplaces"`
}

// ProviderConfig holds API credentials for one provider
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Load loads configuration from environment variables and config files.
// An explicit configFile must exist; otherwise config.yaml is looked up in
// the usual places and is optional.
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read .env file").
			WithCause(err)
	}

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/placeagg/")
	}

	// Environment variable settings
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("error reading config file").
				WithCause(err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unable to decode config").
			WithCause(err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("log.level", "info")

	// Geocoding defaults
	v.SetDefault("geocode.base_url", "https://geocode.maps.co")
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.timeout", "5s")

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Engine defaults
	v.SetDefault("aggregation.soft_timeout", "8s")
	v.SetDefault("aggregation.enrich_concurrency", 4)
	v.SetDefault("aggregation.result_limit", 20)
	v.SetDefault("aggregation.debug", false)
	v.SetDefault("aggregation.match.enabled", false)
	v.SetDefault("aggregation.match.title_threshold", 0.8)
	v.SetDefault("aggregation.match.radius_meters", 75.0)
	v.SetDefault("aggregation.match.fuzzy_edit_distance", 1)

	v.SetDefault("connectors", []map[string]interface{}{
		{"name": "geoapify", "search": true, "timeout": "5s", "rate_per_second": 5},
		{"name": "serpapi", "search": true, "timeout": "8s", "rate_per_second": 1},
		{"name": "googleplaces", "enrich": true, "timeout": "5s", "rate_per_second": 10},
	})

	// Provider defaults; keys default to empty so they can come from env
	v.SetDefault("providers.geoapify.base_url", "https://api.geoapify.com")
	v.SetDefault("providers.geoapify.api_key", "")
	v.SetDefault("providers.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("providers.serpapi.api_key", "")
	v.SetDefault("providers.googleplaces.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("providers.googleplaces.api_key", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if strings.TrimSpace(config.Server.Port) == "" {
		return invalid("server port is required")
	}

	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("log level must be one of debug, info, warn, error; got: %s", config.Log.Level))
	}

	if config.RateLimit.PerIP < 0 {
		return invalid("ratelimit.per_ip must not be negative")
	}

	agg := config.Aggregation
	if agg.SoftTimeout < 0 {
		return invalid("aggregation.soft_timeout must not be negative")
	}
	if agg.EnrichConcurrency <= 0 {
		return invalid("aggregation.enrich_concurrency must be positive")
	}
	if agg.ResultLimit <= 0 {
		return invalid("aggregation.result_limit must be positive")
	}
	if agg.Match.Enabled && (agg.Match.TitleThreshold <= 0 || agg.Match.TitleThreshold > 1) {
		return invalid(fmt.Sprintf("aggregation.match.title_threshold must be in (0, 1], got: %v", agg.Match.TitleThreshold))
	}

	seen := make(map[string]bool)
	for i, c := range config.Connectors {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return invalid(fmt.Sprintf("connectors[%d]: name is required", i))
		}
		if seen[name] {
			return invalid(fmt.Sprintf("connector %q is listed twice", name))
		}
		seen[name] = true

		if !c.Search && !c.Enrich {
			return invalid(fmt.Sprintf("connector %q must enable search or enrich", name))
		}
		if c.Timeout < 0 || c.Retries < 0 || c.RatePerSecond < 0 {
			return invalid(fmt.Sprintf("connector %q: timeout, retries and rate_per_second must not be negative", name))
		}
	}

	return nil
}

func invalid(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("invalid configuration: " + msg)
}

// loadEnvFile loads ./.env into the process environment. Variables that are
// already set are left alone; a missing file is not an error.
func loadEnvFile() error {
	if err := gotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

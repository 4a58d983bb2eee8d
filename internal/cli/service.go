package cli

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/config"
	"github.com/fooddiscovery/backend/internal/domain"
	"github.com/fooddiscovery/backend/internal/infrastructure/cache"
	"github.com/fooddiscovery/backend/internal/infrastructure/connector"
	"github.com/fooddiscovery/backend/internal/infrastructure/geocode"
	"github.com/fooddiscovery/backend/internal/usecase"
)

// buildService wires cache, resolver, connectors and engine from cfg. The
// returned cleanup must be called once the service is no longer used.
// When no search connector could be built the error wraps
// domain.ErrNoConnectors and the service is nil.
func buildService(cfg *config.Config) (*usecase.AggregationService, func(), error) {
	memoryCache := cache.NewMemoryCache(cache.DefaultCleanupInterval)
	cleanup := memoryCache.Close

	registrations, err := connector.Build(cfg.Connectors, cfg.Providers)
	if err != nil {
		if !errors.Is(err, domain.ErrNoConnectors) {
			cleanup()
			return nil, func() {}, err
		}
		return nil, cleanup, err
	}

	resolver := geocode.NewResolver(geocode.Config{
		BaseURL:  cfg.Geocode.BaseURL,
		APIKey:   cfg.Geocode.APIKey,
		Timeout:  cfg.Geocode.Timeout,
		CacheTTL: cfg.Cache.TTL,
	}, memoryCache)

	var matcher usecase.Matcher
	if cfg.Aggregation.Match.Enabled {
		matcher = usecase.NewTitleProximityMatcher(usecase.MatchConfig{
			TitleThreshold:    cfg.Aggregation.Match.TitleThreshold,
			RadiusMeters:      cfg.Aggregation.Match.RadiusMeters,
			FuzzyEditDistance: cfg.Aggregation.Match.FuzzyEditDistance,
		})
	}

	service := usecase.NewAggregationService(resolver, registrations, usecase.AggregationConfig{
		SoftTimeout:        cfg.Aggregation.SoftTimeout,
		EnrichConcurrency:  cfg.Aggregation.EnrichConcurrency,
		ResultLimit:        cfg.Aggregation.ResultLimit,
		Matcher:            matcher,
		EnableDebugLogging: cfg.Aggregation.Debug,
	})

	log.Info().
		Int("connectors", len(registrations)).
		Bool("cross_provider_match", cfg.Aggregation.Match.Enabled).
		Dur("soft_timeout", cfg.Aggregation.SoftTimeout).
		Msg("aggregation service ready")

	return service, cleanup, nil
}

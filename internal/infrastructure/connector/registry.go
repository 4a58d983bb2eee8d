package connector

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/config"
	"github.com/fooddiscovery/backend/internal/domain"
	"github.com/fooddiscovery/backend/internal/infrastructure/geoapify"
	"github.com/fooddiscovery/backend/internal/infrastructure/googleplaces"
	"github.com/fooddiscovery/backend/internal/infrastructure/serpapi"
)

// factory knows what a connector can do and how to build it
type factory struct {
	canSearch bool
	canEnrich bool
	provider  func(config.ProvidersConfig) config.ProviderConfig
	build     func(config.ProviderConfig, config.ConnectorConfig) domain.Connector
}

var factories = map[string]factory{
	geoapify.Name: {
		canSearch: true,
		provider:  func(p config.ProvidersConfig) config.ProviderConfig { return p.Geoapify },
		build: func(p config.ProviderConfig, c config.ConnectorConfig) domain.Connector {
			return geoapify.NewClient(geoapify.Config{
				APIKey:        p.APIKey,
				BaseURL:       p.BaseURL,
				Timeout:       c.Timeout,
				RatePerSecond: c.RatePerSecond,
			})
		},
	},
	serpapi.Name: {
		canSearch: true,
		provider:  func(p config.ProvidersConfig) config.ProviderConfig { return p.SerpApi },
		build: func(p config.ProviderConfig, c config.ConnectorConfig) domain.Connector {
			return serpapi.NewClient(serpapi.Config{
				APIKey:        p.APIKey,
				BaseURL:       p.BaseURL,
				Timeout:       c.Timeout,
				RatePerSecond: c.RatePerSecond,
			})
		},
	},
	googleplaces.Name: {
		canEnrich: true,
		provider:  func(p config.ProvidersConfig) config.ProviderConfig { return p.GooglePlaces },
		build: func(p config.ProviderConfig, c config.ConnectorConfig) domain.Connector {
			return googleplaces.NewClient(googleplaces.Config{
				APIKey:        p.APIKey,
				BaseURL:       p.BaseURL,
				Timeout:       c.Timeout,
				RatePerSecond: c.RatePerSecond,
			})
		},
	},
}

// Known returns the names of every connector that can be configured
func Known() []string {
	return []string{geoapify.Name, serpapi.Name, googleplaces.Name}
}

// Capabilities reports what the named connector supports
func Capabilities(name string) (search, enrich, ok bool) {
	f, ok := factories[name]
	return f.canSearch, f.canEnrich, ok
}

// Build turns the configured connector list into engine registrations,
// keeping list order. Connectors whose provider has no API key are skipped
// with a warning. When no search connector remains, the registrations are
// returned together with an error wrapping domain.ErrNoConnectors.
func Build(connectors []config.ConnectorConfig, providers config.ProvidersConfig) ([]domain.Registration, error) {
	var (
		registrations []domain.Registration
		searchers     int
	)

	for _, c := range connectors {
		name := strings.TrimSpace(c.Name)
		f, ok := factories[name]
		if !ok {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown connector %q (known: %s)", name, strings.Join(Known(), ", ")))
		}
		if c.Search && !f.canSearch {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("connector %q does not support search", name))
		}
		if c.Enrich && !f.canEnrich {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("connector %q does not support enrich", name))
		}

		provider := f.provider(providers)
		if strings.TrimSpace(provider.APIKey) == "" {
			log.Warn().Str("connector", name).Msg("no API key configured, connector disabled")
			continue
		}

		conn := f.build(provider, c)
		reg := domain.Registration{
			Name:    name,
			Timeout: c.Timeout,
			Retries: c.Retries,
		}
		if c.Search {
			reg.Search = conn.(domain.SearchConnector)
			searchers++
		}
		if c.Enrich {
			reg.Enrich = conn.(domain.EnrichConnector)
		}
		registrations = append(registrations, reg)

		log.Info().
			Str("connector", name).
			Bool("search", c.Search).
			Bool("enrich", c.Enrich).
			Dur("timeout", c.Timeout).
			Int("retries", c.Retries).
			Msg("connector registered")
	}

	if searchers == 0 {
		return registrations, fmt.Errorf("%w: set a provider API key for at least one search connector", domain.ErrNoConnectors)
	}

	return registrations, nil
}

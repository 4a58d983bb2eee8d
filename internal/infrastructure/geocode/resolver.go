package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/internal/domain"
	"github.com/fooddiscovery/backend/internal/infrastructure/providerhttp"
	"github.com/fooddiscovery/backend/internal/infrastructure/ratelimit"
)

const (
	providerName      = "geocode"
	defaultBaseURL    = "https://geocode.maps.co"
	defaultCacheTTL   = 24 * time.Hour
	cacheKeyPrefix    = "geocode:"
	requestsPerSecond = 1
)

// Config configures the resolver
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Resolver turns free-text locations into coordinates using a
// geocode.maps.co compatible search endpoint. Successful lookups are cached.
type Resolver struct {
	http     *providerhttp.Client
	cache    domain.CacheRepository
	baseURL  string
	apiKey   string
	cacheTTL time.Duration
}

// NewResolver creates a resolver; a nil cache disables caching
func NewResolver(cfg Config, cache domain.CacheRepository) *Resolver {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Resolver{
		http:     providerhttp.New(providerName, cfg.Timeout, ratelimit.New(providerName, requestsPerSecond)),
		cache:    cache,
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		cacheTTL: ttl,
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve implements domain.LocationResolver
func (r *Resolver) Resolve(ctx context.Context, location string) (domain.Coordinates, error) {
	normalized := normalize(location)
	if normalized == "" {
		return domain.Coordinates{}, fmt.Errorf("%w: empty location", domain.ErrLocationNotFound)
	}
	key := cacheKeyPrefix + normalized

	if r.cache != nil {
		var cached domain.Coordinates
		err := r.cache.Get(ctx, key, &cached)
		if err == nil {
			log.Debug().Str("location", normalized).Msg("geocode cache hit")
			return cached, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Warn().Err(err).Str("location", normalized).Msg("geocode cache read failed")
		}
	}

	params := url.Values{}
	params.Set("q", location)
	if r.apiKey != "" {
		params.Set("api_key", r.apiKey)
	}

	var results []searchResult
	if err := r.http.GetJSON(ctx, r.baseURL+"/search", params, &results); err != nil {
		return domain.Coordinates{}, err
	}

	coords, ok := firstValid(results)
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, location)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, coords, r.cacheTTL); err != nil {
			log.Warn().Err(err).Str("location", normalized).Msg("geocode cache write failed")
		}
	}

	log.Debug().
		Str("location", normalized).
		Float64("lat", coords.Latitude).
		Float64("lon", coords.Longitude).
		Msg("location resolved")

	return coords, nil
}

// firstValid returns the first result with parseable, in-range coordinates
func firstValid(results []searchResult) (domain.Coordinates, bool) {
	for _, res := range results {
		lat, err := strconv.ParseFloat(res.Lat, 64)
		if err != nil || lat < -90 || lat > 90 {
			continue
		}
		lon, err := strconv.ParseFloat(res.Lon, 64)
		if err != nil || lon < -180 || lon > 180 {
			continue
		}
		return domain.Coordinates{Latitude: lat, Longitude: lon}, true
	}
	return domain.Coordinates{}, false
}

func normalize(location string) string {
	return strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

package geoapify

import (
	"context"
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

// Name is the provider name used in canonical ids and sources
const Name = "geoapify"

const (
	defaultBaseURL      = "https://api.geoapify.com"
	defaultRadiusMeters = 5000
	defaultLimit        = 20
	maxLimit            = 500
	restaurantCategory  = "catering.restaurant"
)

// Config configures the Geoapify Places connector
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	RadiusMeters  int
}

// Client searches restaurants through the Geoapify Places API
type Client struct {
	http         *providerhttp.Client
	apiKey       string
	baseURL      string
	radiusMeters int
	now          func() time.Time
}

// NewClient creates a new Geoapify client
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = defaultRadiusMeters
	}

	return &Client{
		http:         providerhttp.New(Name, cfg.Timeout, ratelimit.New(Name, cfg.RatePerSecond)),
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		radiusMeters: radius,
		now:          time.Now,
	}
}

// Name implements domain.Connector
func (c *Client) Name() string {
	return Name
}

// Search implements domain.SearchConnector. Places are selected by category
// and radius only; the query text is not sent, since Geoapify's name filter
// would drop every place whose name does not contain it.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchBatch, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	lon := formatCoord(query.Longitude)
	lat := formatCoord(query.Latitude)

	params := url.Values{}
	params.Set("categories", restaurantCategory)
	params.Set("filter", fmt.Sprintf("circle:%s,%s,%d", lon, lat, c.radiusMeters))
	params.Set("bias", fmt.Sprintf("proximity:%s,%s", lon, lat))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("apiKey", c.apiKey)

	var resp placesResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v2/places", params, &resp); err != nil {
		return domain.SearchBatch{}, err
	}

	batch := MapToBatch(resp.Features, c.now())
	log.Debug().
		Str("connector", Name).
		Int("features", len(resp.Features)).
		Int("products", len(batch.Products)).
		Int("rejected", len(batch.Rejected)).
		Msg("search complete")

	return batch, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package serpapi

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

// Name is the provider name used in canonical ids and sources
const Name = "serpapi"

const (
	defaultBaseURL = "https://serpapi.com"
	defaultLimit   = 20
	zoomLevel      = "15z"
	// noResultsMessage is how SerpApi reports an empty search
	noResultsMessage = "hasn't returned any results"
)

// Config configures the SerpApi Google Maps connector
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client searches places through SerpApi's google_maps engine
type Client struct {
	http    *providerhttp.Client
	apiKey  string
	baseURL string
	now     func() time.Time
}

// NewClient creates a new SerpApi client
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		http:    providerhttp.New(Name, cfg.Timeout, ratelimit.New(Name, cfg.RatePerSecond)),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Name implements domain.Connector
func (c *Client) Name() string {
	return Name
}

// Search implements domain.SearchConnector
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchBatch, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", query.Text)
	params.Set("ll", fmt.Sprintf("@%s,%s,%s",
		strconv.FormatFloat(query.Latitude, 'f', -1, 64),
		strconv.FormatFloat(query.Longitude, 'f', -1, 64),
		zoomLevel))
	params.Set("num", strconv.Itoa(limit))
	params.Set("api_key", c.apiKey)

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/search.json", params, &resp); err != nil {
		return domain.SearchBatch{}, err
	}

	if resp.Error != "" {
		if strings.Contains(resp.Error, noResultsMessage) {
			return domain.SearchBatch{}, nil
		}
		pe := domain.NewProviderError(Name, 0, errors.New(resp.Error))
		pe.Retryable = false
		return domain.SearchBatch{}, pe
	}

	results := resp.LocalResults
	if len(results) > limit {
		results = results[:limit]
	}

	batch := MapToBatch(results, c.now())
	log.Debug().
		Str("connector", Name).
		Int("results", len(resp.LocalResults)).
		Int("products", len(batch.Products)).
		Int("rejected", len(batch.Rejected)).
		Msg("search complete")

	return batch, nil
}

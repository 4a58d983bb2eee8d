package googleplaces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/internal/domain"
	"github.com/fooddiscovery/backend/internal/infrastructure/providerhttp"
	"github.com/fooddiscovery/backend/internal/infrastructure/ratelimit"
)

// Name is the provider name used for external ids
const Name = "googleplaces"

const (
	defaultBaseURL    = "https://maps.googleapis.com/maps/api/place"
	biasRadiusMeters  = 2000
	photoMaxWidth     = 400
	detailsFieldsList = "photos,reviews,website,international_phone_number,rating,user_ratings_total"
)

// Config configures the Google Places enrichment connector
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client enriches records with Google Places details
type Client struct {
	http    *providerhttp.Client
	apiKey  string
	baseURL string
}

// NewClient creates a new Google Places client
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		http:    providerhttp.New(Name, cfg.Timeout, ratelimit.New(Name, cfg.RatePerSecond)),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
	}
}

// Name implements domain.Connector
func (c *Client) Name() string {
	return Name
}

// Enrich implements domain.EnrichConnector. Records without a location, or
// that Google cannot find, yield no enrichment.
func (c *Client) Enrich(ctx context.Context, product domain.CanonicalProduct) (*domain.EnrichmentData, error) {
	placeID := product.ExternalIDs[Name]
	if placeID == "" {
		if product.Location == nil || strings.TrimSpace(product.Title) == "" {
			return nil, nil
		}

		var err error
		placeID, err = c.findPlaceID(ctx, product.Title, *product.Location)
		if err != nil || placeID == "" {
			return nil, err
		}
	}

	details, err := c.placeDetails(ctx, placeID)
	if err != nil || details == nil {
		return nil, err
	}

	log.Debug().
		Str("connector", Name).
		Str("product", product.CanonicalProductID).
		Str("place_id", placeID).
		Msg("place details found")

	return MapToEnrichment(placeID, details, c.photoURL), nil
}

func (c *Client) findPlaceID(ctx context.Context, title string, loc domain.GeoPoint) (string, error) {
	params := url.Values{}
	params.Set("input", title)
	params.Set("inputtype", "textquery")
	params.Set("fields", "place_id")
	params.Set("locationbias", fmt.Sprintf("circle:%d@%s,%s",
		biasRadiusMeters,
		strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		strconv.FormatFloat(loc.Longitude, 'f', -1, 64)))
	params.Set("key", c.apiKey)

	var resp findPlaceResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/findplacefromtext/json", params, &resp); err != nil {
		return "", err
	}

	found, err := checkStatus(resp.Status, resp.ErrorMessage)
	if err != nil || !found || len(resp.Candidates) == 0 {
		return "", err
	}
	return resp.Candidates[0].PlaceID, nil
}

func (c *Client) placeDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFieldsList)
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/details/json", params, &resp); err != nil {
		return nil, err
	}

	found, err := checkStatus(resp.Status, resp.ErrorMessage)
	if err != nil || !found {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) photoURL(reference string) string {
	params := url.Values{}
	params.Set("maxwidth", strconv.Itoa(photoMaxWidth))
	params.Set("photoreference", reference)
	params.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + params.Encode()
}

// checkStatus maps a Places API status to (found, error)
func checkStatus(status, message string) (bool, error) {
	switch status {
	case "OK":
		return true, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return false, nil
	}

	detail := status
	if message != "" {
		detail = status + ": " + message
	}
	switch status {
	case "OVER_QUERY_LIMIT":
		return false, domain.NewProviderError(Name, http.StatusTooManyRequests, errors.New(detail))
	case "UNKNOWN_ERROR":
		return false, domain.NewProviderError(Name, 0, errors.New(detail))
	default:
		pe := domain.NewProviderError(Name, 0, errors.New(detail))
		pe.Retryable = false
		return false, pe
	}
}

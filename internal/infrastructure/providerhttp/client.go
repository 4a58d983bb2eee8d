package providerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/internal/domain"
	"github.com/fooddiscovery/backend/internal/infrastructure/ratelimit"
)

const (
	userAgent = "FoodDiscovery/1.0"
	// maxBodyBytes caps how much of a provider response is read
	maxBodyBytes = 4 << 20
	// snippetBytes caps how much of an error body ends up in an error message
	snippetBytes = 256
)

// Client performs rate-limited JSON GET requests against one provider.
// It makes a single attempt; retries are the engine's job.
type Client struct {
	provider    string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
}

// New creates a client. A nil limiter means no client-side rate limiting.
func New(provider string, timeout time.Duration, limiter *ratelimit.Limiter) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: limiter,
	}
}

// Provider returns the provider name used in errors and logs
func (c *Client) Provider() string {
	return c.provider
}

// GetJSON issues GET endpoint?params and decodes a 200 response into dest.
// Every failure is returned as a *domain.ProviderError, except context
// cancellation which is returned as is.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewProviderError(c.provider, 0, err)
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		pe := domain.NewProviderError(c.provider, 0, fmt.Errorf("failed to create request: %w", err))
		pe.Retryable = false
		return pe
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewProviderError(c.provider, 0, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.NewProviderError(c.provider, 0, fmt.Errorf("failed to read response: %w", err))
	}

	log.Debug().
		Str("connector", c.provider).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("provider response")

	if resp.StatusCode != http.StatusOK {
		return domain.NewProviderError(c.provider, resp.StatusCode, fmt.Errorf("unexpected response: %s", snippet(body)))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return domain.NewProviderError(c.provider, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// redact drops the request URL from transport errors; it carries the API key
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func snippet(body []byte) string {
	if len(body) > snippetBytes {
		return string(body[:snippetBytes]) + "..."
	}
	return string(body)
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fooddiscovery/backend/internal/domain"
)

// Aggregator runs one aggregation request
type Aggregator interface {
	Aggregate(ctx context.Context, request *domain.SearchRequest) (*domain.AggregationResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	aggregator Aggregator
}

// NewHandler creates a new HTTP handler. A nil aggregator is allowed; search
// endpoints then answer 503.
func NewHandler(aggregator Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	RequestID   string                    `json:"requestId"`
	Products    []domain.CanonicalProduct `json:"products"`
	Diagnostics []domain.Diagnostic       `json:"diagnostics"`
	Count       int                       `json:"count"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"service":       "fooddiscovery-backend",
		"version":       "1.0.0",
		"searchEnabled": h.aggregator != nil,
	})
}

// SearchGet handles GET /api/v1/search?q=&location=&lat=&lon=&limit=
func (h *Handler) SearchGet(c *gin.Context) {
	var request domain.SearchRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters: " + err.Error()})
		return
	}
	h.search(c, &request)
}

// SearchPost handles POST /api/v1/search with a JSON body
func (h *Handler) SearchPost(c *gin.Context) {
	var request domain.SearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	h.search(c, &request)
}

func (h *Handler) search(c *gin.Context, request *domain.SearchRequest) {
	if h.aggregator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "search is unavailable: no search connectors are configured",
		})
		return
	}

	result, err := h.aggregator.Aggregate(c.Request.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "query is required, together with a location or valid lat/lon",
			})
		case errors.Is(err, domain.ErrLocationNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "could not resolve location: " + request.Location,
			})
		default:
			log.Error().Err(err).Str("path", c.FullPath()).Msg("search failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.Header("X-Request-ID", result.RequestID)
	c.JSON(http.StatusOK, SearchResponse{
		RequestID:   result.RequestID,
		Products:    result.Products,
		Diagnostics: result.Diagnostics,
		Count:       len(result.Products),
	})
}

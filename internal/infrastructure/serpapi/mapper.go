package serpapi

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fooddiscovery/backend/internal/domain"
)

type searchResponse struct {
	LocalResults []LocalResult `json:"local_results"`
	Error        string        `json:"error"`
}

// LocalResult is one entry of local_results
type LocalResult struct {
	PlaceID        string          `json:"place_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Thumbnail      string          `json:"thumbnail"`
	Rating         *float64        `json:"rating"`
	Reviews        *int            `json:"reviews"`
	Price          string          `json:"price"`
	Type           string          `json:"type"`
	Types          []string        `json:"types"`
	Address        string          `json:"address"`
	Phone          string          `json:"phone"`
	Website        string          `json:"website"`
	GPSCoordinates *GPSCoordinates `json:"gps_coordinates"`
}

// GPSCoordinates is the position SerpApi reports for a place
type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MapToBatch converts local results to canonical records. Results that fail
// validation are reported in Rejected instead of being returned.
func MapToBatch(results []LocalResult, fetchedAt time.Time) domain.SearchBatch {
	batch := domain.SearchBatch{Products: make([]domain.CanonicalProduct, 0, len(results))}

	for _, r := range results {
		product := MapToCanonical(r, fetchedAt)
		if err := domain.Validate(&product); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				batch.Rejected = append(batch.Rejected, ve)
			}
			continue
		}
		batch.Products = append(batch.Products, product)
	}

	return batch
}

// MapToCanonical converts one local result
func MapToCanonical(r LocalResult, fetchedAt time.Time) domain.CanonicalProduct {
	placeID := strings.TrimSpace(r.PlaceID)

	product := domain.CanonicalProduct{
		Title:      strings.TrimSpace(r.Title),
		Images:     []string{},
		Rating:     r.Rating,
		NumRatings: r.Reviews,
		Price:      ParsePrice(r.Price),
		Sources: []domain.Source{{
			Provider:          Name,
			ProviderProductID: placeID,
			LastFetchedAt:     fetchedAt.UTC(),
		}},
	}

	if placeID != "" {
		product.CanonicalProductID = domain.NewCanonicalID(Name, placeID)
	}
	if r.Thumbnail != "" {
		product.Images = []string{r.Thumbnail}
	}
	if r.Description != "" {
		product.Description = stringPtr(r.Description)
	}
	if r.Address != "" {
		product.Address = stringPtr(r.Address)
	}
	if r.Phone != "" {
		product.PhoneNumber = stringPtr(r.Phone)
	}
	product.Website = domain.NormalizeWebsite(r.Website)
	if r.GPSCoordinates != nil {
		product.Location = &domain.GeoPoint{
			Latitude:  r.GPSCoordinates.Latitude,
			Longitude: r.GPSCoordinates.Longitude,
		}
	}

	switch {
	case len(r.Types) > 0:
		product.Tags = r.Types
	case r.Type != "":
		product.Tags = []string{r.Type}
	}

	if product.Price != nil {
		price := *product.Price
		product.Sources[0].Price = &price
	}

	return product
}

// ParsePrice reads a single numeric dollar amount such as "$12.50".
// Price levels ("$$") and ranges ("$10-20") return nil.
func ParsePrice(raw string) *domain.Price {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "$") {
		return nil
	}
	amount, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil
	}
	return &domain.Price{Amount: amount, Currency: "USD"}
}

func stringPtr(s string) *string {
	return &s
}

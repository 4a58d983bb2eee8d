package geoapify

import (
	"errors"
	"strings"
	"time"

	"github.com/fooddiscovery/backend/internal/domain"
)

type placesResponse struct {
	Features []Feature `json:"features"`
}

// Feature is one GeoJSON feature of a Places response
type Feature struct {
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// Geometry is a GeoJSON point, coordinates ordered lon, lat
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Properties holds the place attributes the connector reads
type Properties struct {
	PlaceID      string   `json:"place_id"`
	Name         string   `json:"name"`
	Formatted    string   `json:"formatted"`
	AddressLine1 string   `json:"address_line1"`
	AddressLine2 string   `json:"address_line2"`
	Categories   []string `json:"categories"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Website      string   `json:"website"`
	Rating       *float64 `json:"rating"`
	Contact      *Contact `json:"contact"`
}

// Contact holds contact details, when Geoapify has them
type Contact struct {
	Phone string `json:"phone"`
}

// MapToBatch converts features to canonical records. Features that fail
// validation are reported in Rejected instead of being returned.
func MapToBatch(features []Feature, fetchedAt time.Time) domain.SearchBatch {
	batch := domain.SearchBatch{Products: make([]domain.CanonicalProduct, 0, len(features))}

	for _, f := range features {
		product := MapToCanonical(f, fetchedAt)
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

// MapToCanonical converts one feature. The result may still be invalid,
// e.g. for unnamed places.
func MapToCanonical(f Feature, fetchedAt time.Time) domain.CanonicalProduct {
	props := f.Properties
	placeID := strings.TrimSpace(props.PlaceID)

	product := domain.CanonicalProduct{
		CanonicalProductID: domain.NewCanonicalID(Name, placeID),
		Title:              strings.TrimSpace(props.Name),
		Images:             []string{},
		Tags:               props.Categories,
		Rating:             props.Rating,
		Location:           location(f),
		Sources: []domain.Source{{
			Provider:          Name,
			ProviderProductID: placeID,
			LastFetchedAt:     fetchedAt.UTC(),
		}},
	}

	if placeID == "" {
		product.CanonicalProductID = ""
	}
	if props.AddressLine2 != "" {
		product.Description = stringPtr(props.AddressLine2)
	}
	if props.Formatted != "" {
		product.Address = stringPtr(props.Formatted)
	}
	product.Website = domain.NormalizeWebsite(props.Website)
	if props.Contact != nil && props.Contact.Phone != "" {
		product.PhoneNumber = stringPtr(props.Contact.Phone)
	}

	return product
}

func location(f Feature) *domain.GeoPoint {
	if f.Properties.Lat != nil && f.Properties.Lon != nil {
		return &domain.GeoPoint{Latitude: *f.Properties.Lat, Longitude: *f.Properties.Lon}
	}
	if f.Geometry != nil && len(f.Geometry.Coordinates) >= 2 {
		return &domain.GeoPoint{Latitude: f.Geometry.Coordinates[1], Longitude: f.Geometry.Coordinates[0]}
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}

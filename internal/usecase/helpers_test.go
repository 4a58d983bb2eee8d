package usecase

import (
	"time"

	"github.com/fooddiscovery/backend/internal/domain"
)

var fetchedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// newRecord builds a valid single-source record for the given provider
func newRecord(provider, localID, title string) domain.CanonicalProduct {
	return domain.CanonicalProduct{
		CanonicalProductID: domain.NewCanonicalID(provider, localID),
		Title:              title,
		Images:             []string{},
		Sources: []domain.Source{{
			Provider:          provider,
			ProviderProductID: localID,
			LastFetchedAt:     fetchedAt,
		}},
	}
}

func withLocation(p domain.CanonicalProduct, lat, lon float64) domain.CanonicalProduct {
	p.Location = &domain.GeoPoint{Latitude: lat, Longitude: lon}
	return p
}

func withRating(p domain.CanonicalProduct, rating float64) domain.CanonicalProduct {
	p.Rating = &rating
	return p
}

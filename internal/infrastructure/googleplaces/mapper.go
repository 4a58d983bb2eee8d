package googleplaces

import (
	"github.com/fooddiscovery/backend/internal/domain"
)

type findPlaceResponse struct {
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type detailsResponse struct {
	Result       *PlaceDetails `json:"result"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
}

// PlaceDetails holds the requested detail fields
type PlaceDetails struct {
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
	Reviews []struct {
		AuthorName string  `json:"author_name"`
		Rating     float64 `json:"rating"`
		Text       string  `json:"text"`
	} `json:"reviews"`
	Website                  string   `json:"website"`
	InternationalPhoneNumber string   `json:"international_phone_number"`
	Rating                   *float64 `json:"rating"`
	UserRatingsTotal         *int     `json:"user_ratings_total"`
}

// MapToEnrichment converts place details; photoURL turns a photo reference
// into a fetchable URL
func MapToEnrichment(placeID string, d *PlaceDetails, photoURL func(string) string) *domain.EnrichmentData {
	data := &domain.EnrichmentData{
		Provider:        Name,
		ExternalPlaceID: placeID,
		Rating:          d.Rating,
		NumRatings:      d.UserRatingsTotal,
	}

	for _, p := range d.Photos {
		if p.PhotoReference != "" {
			data.Photos = append(data.Photos, photoURL(p.PhotoReference))
		}
	}
	for _, r := range d.Reviews {
		data.Reviews = append(data.Reviews, domain.Review{
			Author: r.AuthorName,
			Rating: r.Rating,
			Text:   r.Text,
		})
	}
	data.Website = domain.NormalizeWebsite(d.Website)
	if d.InternationalPhoneNumber != "" {
		phone := d.InternationalPhoneNumber
		data.PhoneNumber = &phone
	}

	return data
}

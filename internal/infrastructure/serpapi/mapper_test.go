package serpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fooddiscovery/backend/internal/domain"
)

func TestParsePrice(t *testing.T) {
	testCases := []struct {
		input string
		want  *domain.Price
	}{
		{"$12.50", &domain.Price{Amount: 12.50, Currency: "USD"}},
		{"$8", &domain.Price{Amount: 8, Currency: "USD"}},
		{" $0 ", &domain.Price{Amount: 0, Currency: "USD"}},
		{"$$", nil},
		{"$10–20", nil},
		{"12.50", nil},
		{"$NaN", nil},
		{"", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePrice(tc.input))
		})
	}
}

func TestMapToCanonical(t *testing.T) {
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rating := 4.5
	reviews := 18234

	r := LocalResult{
		PlaceID:        "ChIJ1",
		Title:          "Joe's Pizza",
		Description:    "Classic NY slices",
		Thumbnail:      "https://lh5.googleusercontent.com/p/abc",
		Rating:         &rating,
		Reviews:        &reviews,
		Price:          "$3.50",
		Type:           "Pizza restaurant",
		Address:        "7 Carmine St",
		Phone:          "(212) 366-1182",
		Website:        "https://www.joespizzanyc.com/",
		GPSCoordinates: &GPSCoordinates{Latitude: 40.7306, Longitude: -73.989},
	}

	p := MapToCanonical(r, fetchedAt)

	assert.Equal(t, "serpapi::ChIJ1", p.CanonicalProductID)
	assert.Equal(t, "Joe's Pizza", p.Title)
	assert.Equal(t, "Classic NY slices", *p.Description)
	assert.Equal(t, []string{"https://lh5.googleusercontent.com/p/abc"}, p.Images)
	assert.Equal(t, 4.5, *p.Rating)
	assert.Equal(t, 18234, *p.NumRatings)
	assert.Equal(t, &domain.Price{Amount: 3.5, Currency: "USD"}, p.Price)
	assert.Equal(t, []string{"Pizza restaurant"}, p.Tags)
	assert.Equal(t, "7 Carmine St", *p.Address)
	assert.Equal(t, "(212) 366-1182", *p.PhoneNumber)
	assert.Equal(t, "https://www.joespizzanyc.com/", *p.Website)
	assert.Equal(t, &domain.GeoPoint{Latitude: 40.7306, Longitude: -73.989}, p.Location)

	require.Len(t, p.Sources, 1)
	assert.Equal(t, "serpapi", p.Sources[0].Provider)
	assert.Equal(t, "ChIJ1", p.Sources[0].ProviderProductID)
	assert.Equal(t, fetchedAt, p.Sources[0].LastFetchedAt)
	assert.Equal(t, p.Price, p.Sources[0].Price)
	assert.NotSame(t, p.Price, p.Sources[0].Price)

	assert.NoError(t, domain.Validate(&p))
}

func TestMapToCanonical_TypesPreferred(t *testing.T) {
	p := MapToCanonical(LocalResult{PlaceID: "x", Title: "t", Type: "Cafe", Types: []string{"Cafe", "Bakery"}}, time.Now())
	assert.Equal(t, []string{"Cafe", "Bakery"}, p.Tags)
}

func TestMapToBatch_RejectsMissingPlaceID(t *testing.T) {
	batch := MapToBatch([]LocalResult{{Title: "Mystery Diner"}}, time.Now())

	assert.Empty(t, batch.Products)
	require.Len(t, batch.Rejected, 1)
	assert.Contains(t, batch.Rejected[0].Error(), "<no id>")
}

func TestMapToBatch_SchemelessWebsite(t *testing.T) {
	batch := MapToBatch([]LocalResult{
		{PlaceID: "ChIJ1", Title: "Joe's Pizza", Website: "joespizzanyc.com"},
		{PlaceID: "ChIJ2", Title: "Prince St Pizza", Website: "mailto:prince@example.com"},
	}, time.Now())

	require.Len(t, batch.Products, 2)
	assert.Empty(t, batch.Rejected)
	require.NotNil(t, batch.Products[0].Website)
	assert.Equal(t, "https://joespizzanyc.com", *batch.Products[0].Website)
	assert.Nil(t, batch.Products[1].Website)
}

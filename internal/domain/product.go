package domain

import (
	"fmt"
	"strings"
	"time"
)

// canonicalIDSeparator joins the provider name and the provider-local id
const canonicalIDSeparator = "::"

// CanonicalProduct is the unified record for one real-world place/product
// after merging the partial records returned by every provider
type CanonicalProduct struct {
	CanonicalProductID string            `json:"canonicalProductId" validate:"required"`
	Title              string            `json:"title" validate:"required"`
	Description        *string           `json:"description,omitempty"`
	Images             []string          `json:"images"`
	Tags               []string          `json:"tags,omitempty"`
	Price              *Price            `json:"price,omitempty"`
	Rating             *float64          `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	NumRatings         *int              `json:"numRatings,omitempty" validate:"omitempty,gte=0"`
	Location           *GeoPoint         `json:"location,omitempty"`
	Address            *string           `json:"address,omitempty"`
	Website            *string           `json:"website,omitempty"`
	PhoneNumber        *string           `json:"phoneNumber,omitempty"`
	Reviews            []Review          `json:"reviews,omitempty" validate:"dive"`
	ExternalIDs        map[string]string `json:"externalIds,omitempty"`
	Sources            []Source          `json:"sources" validate:"required,min=1,dive"`
}

// Price is a monetary amount with an ISO 4217 currency code
type Price struct {
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"len=3,uppercase"`
}

// GeoPoint is a provider-supplied WGS84 position
type GeoPoint struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Review is a single user review surfaced by an enrichment provider
type Review struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating" validate:"gte=0,lte=5"`
	Text   string  `json:"text"`
}

// Source records which provider contributed to a canonical record
type Source struct {
	Provider          string    `json:"provider" validate:"required"`
	ProviderProductID string    `json:"providerProductId" validate:"required"`
	Price             *Price    `json:"price,omitempty"`
	DeliveryEtaMin    *int      `json:"deliveryEtaMin,omitempty" validate:"omitempty,gte=0"`
	LastFetchedAt     time.Time `json:"lastFetchedAt"`
}

// EnrichmentData holds supplementary facts from an enrichment provider.
// It is never returned on its own, only merged into a CanonicalProduct.
type EnrichmentData struct {
	Provider        string
	ExternalPlaceID string
	Photos          []string
	Reviews         []Review
	Website         *string
	PhoneNumber     *string
	Rating          *float64
	NumRatings      *int
}

// NewCanonicalID builds the "<provider>::<providerLocalId>" identifier
func NewCanonicalID(provider, localID string) string {
	return provider + canonicalIDSeparator + localID
}

// ParseCanonicalID splits a canonical id into provider and provider-local id
func ParseCanonicalID(id string) (provider, localID string, err error) {
	provider, localID, ok := strings.Cut(id, canonicalIDSeparator)
	if !ok || strings.TrimSpace(provider) == "" || strings.TrimSpace(localID) == "" {
		return "", "", fmt.Errorf("canonical id %q is not of the form <provider>::<id>", id)
	}
	return provider, localID, nil
}

// HasSource reports whether the record already carries a source for the given pair
func (p *CanonicalProduct) HasSource(provider, providerProductID string) bool {
	for _, s := range p.Sources {
		if s.Provider == provider && s.ProviderProductID == providerProductID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so connectors can be handed a record they cannot mutate
func (p CanonicalProduct) Clone() CanonicalProduct {
	out := p
	out.Description = clonePtr(p.Description)
	out.Images = cloneSlice(p.Images)
	out.Tags = cloneSlice(p.Tags)
	if p.Price != nil {
		price := *p.Price
		out.Price = &price
	}
	out.Rating = clonePtr(p.Rating)
	out.NumRatings = clonePtr(p.NumRatings)
	if p.Location != nil {
		loc := *p.Location
		out.Location = &loc
	}
	out.Address = clonePtr(p.Address)
	out.Website = clonePtr(p.Website)
	out.PhoneNumber = clonePtr(p.PhoneNumber)
	out.Reviews = cloneSlice(p.Reviews)
	if p.ExternalIDs != nil {
		out.ExternalIDs = make(map[string]string, len(p.ExternalIDs))
		for k, v := range p.ExternalIDs {
			out.ExternalIDs[k] = v
		}
	}
	out.Sources = make([]Source, len(p.Sources))
	for i, s := range p.Sources {
		out.Sources[i] = s
		if s.Price != nil {
			price := *s.Price
			out.Sources[i].Price = &price
		}
		out.Sources[i].DeliveryEtaMin = clonePtr(s.DeliveryEtaMin)
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

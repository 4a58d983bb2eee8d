package usecase

import (
	"github.com/fooddiscovery/backend/internal/domain"
)

// Merger reconciles the partial records of every search connector into one
// canonical list. It is not safe for concurrent use; the engine calls it
// once per request from a single goroutine.
type Merger struct {
	matcher Matcher
}

// NewMerger creates a merger; a nil matcher disables cross-provider matching
func NewMerger(matcher Matcher) *Merger {
	if matcher == nil {
		matcher = NoCrossProviderMatch{}
	}
	return &Merger{matcher: matcher}
}

// Merge combines batches given in connector registration order. The output
// keeps the order in which canonical entities were first introduced.
func (m *Merger) Merge(batches [][]domain.CanonicalProduct) []domain.CanonicalProduct {
	var merged []domain.CanonicalProduct
	byID := make(map[string]int)

	for _, batch := range batches {
		for _, incoming := range batch {
			if idx, ok := byID[incoming.CanonicalProductID]; ok {
				mergeInto(&merged[idx], &incoming)
				continue
			}

			if idx := m.findCrossProviderMatch(merged, &incoming); idx >= 0 {
				mergeInto(&merged[idx], &incoming)
				byID[incoming.CanonicalProductID] = idx
				continue
			}

			byID[incoming.CanonicalProductID] = len(merged)
			merged = append(merged, incoming.Clone())
		}
	}

	return merged
}

// findCrossProviderMatch returns the index of an existing entry the matcher
// considers equivalent. Entries that already hold a source from one of the
// incoming record's providers are skipped: a provider's distinct local ids
// are distinct places.
func (m *Merger) findCrossProviderMatch(merged []domain.CanonicalProduct, incoming *domain.CanonicalProduct) int {
	for i := range merged {
		if sharesProvider(&merged[i], incoming) {
			continue
		}
		if m.matcher.Equivalent(&merged[i], incoming) {
			return i
		}
	}
	return -1
}

func sharesProvider(a, b *domain.CanonicalProduct) bool {
	for _, sa := range a.Sources {
		for _, sb := range b.Sources {
			if sa.Provider == sb.Provider {
				return true
			}
		}
	}
	return false
}

// mergeInto appends the incoming sources and fills optional fields that are
// still unset on dst. Fields already set are never overwritten.
func mergeInto(dst, src *domain.CanonicalProduct) {
	in := src.Clone()

	for _, s := range in.Sources {
		if dst.HasSource(s.Provider, s.ProviderProductID) {
			continue
		}
		dst.Sources = append(dst.Sources, s)
	}

	if dst.Description == nil {
		dst.Description = in.Description
	}
	if len(dst.Images) == 0 {
		dst.Images = in.Images
	}
	if len(dst.Tags) == 0 {
		dst.Tags = in.Tags
	}
	if dst.Price == nil {
		dst.Price = in.Price
	}
	if dst.Rating == nil {
		dst.Rating = in.Rating
	}
	if dst.NumRatings == nil {
		dst.NumRatings = in.NumRatings
	}
	if dst.Location == nil {
		dst.Location = in.Location
	}
	if dst.Address == nil {
		dst.Address = in.Address
	}
	if dst.Website == nil {
		dst.Website = in.Website
	}
	if dst.PhoneNumber == nil {
		dst.PhoneNumber = in.PhoneNumber
	}
	if len(dst.Reviews) == 0 {
		dst.Reviews = in.Reviews
	}
	for k, v := range in.ExternalIDs {
		if dst.ExternalIDs == nil {
			dst.ExternalIDs = make(map[string]string)
		}
		if _, ok := dst.ExternalIDs[k]; !ok {
			dst.ExternalIDs[k] = v
		}
	}
}

// applyEnrichment fills fields of p that are still unset from e and returns
// the names of the fields it filled. Search-phase data always wins.
func applyEnrichment(p *domain.CanonicalProduct, e *domain.EnrichmentData) []string {
	var filled []string

	if len(p.Images) == 0 && len(e.Photos) > 0 {
		p.Images = append([]string(nil), e.Photos...)
		filled = append(filled, "images")
	}
	if p.Rating == nil && e.Rating != nil {
		r := *e.Rating
		p.Rating = &r
		filled = append(filled, "rating")
	}
	if p.NumRatings == nil && e.NumRatings != nil {
		n := *e.NumRatings
		p.NumRatings = &n
		filled = append(filled, "numRatings")
	}
	if p.Website == nil && e.Website != nil {
		w := *e.Website
		p.Website = &w
		filled = append(filled, "website")
	}
	if p.PhoneNumber == nil && e.PhoneNumber != nil {
		ph := *e.PhoneNumber
		p.PhoneNumber = &ph
		filled = append(filled, "phoneNumber")
	}
	if len(p.Reviews) == 0 && len(e.Reviews) > 0 {
		p.Reviews = append([]domain.Review(nil), e.Reviews...)
		filled = append(filled, "reviews")
	}
	if e.ExternalPlaceID != "" && e.Provider != "" {
		if _, ok := p.ExternalIDs[e.Provider]; !ok {
			if p.ExternalIDs == nil {
				p.ExternalIDs = make(map[string]string)
			}
			p.ExternalIDs[e.Provider] = e.ExternalPlaceID
			filled = append(filled, "externalIds."+e.Provider)
		}
	}

	return filled
}

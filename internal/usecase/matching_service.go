package usecase

import (
	"math"
	"regexp"
	"strings"

	"github.com/fooddiscovery/backend/internal/domain"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

const earthRadiusMeters = 6371000.0

// titleStopWords are dropped before comparing place names
var titleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "of": true,
	"at": true, "on": true, "in": true, "by": true, "la": true,
	"le": true, "el": true, "de": true, "da": true, "di": true,
}

// Matcher decides whether two records from different providers describe
// the same real-world place
type Matcher interface {
	Equivalent(a, b *domain.CanonicalProduct) bool
}

// NoCrossProviderMatch never merges records across providers.
// Duplicates are preferred over merges that could be wrong.
type NoCrossProviderMatch struct{}

// Equivalent always returns false
func (NoCrossProviderMatch) Equivalent(_, _ *domain.CanonicalProduct) bool { return false }

// MatchConfig holds configuration for the title/proximity matcher
type MatchConfig struct {
	TitleThreshold    float64 // minimum token similarity, 0-1
	RadiusMeters      float64
	FuzzyEditDistance int
}

// TitleProximityMatcher treats two records as the same place when their
// normalized titles are similar and their locations are close.
// Records without a location never match.
type TitleProximityMatcher struct {
	titleThreshold    float64
	radiusMeters      float64
	fuzzyEditDistance int
}

// NewTitleProximityMatcher creates a matcher, filling defaults for unset values
func NewTitleProximityMatcher(config MatchConfig) *TitleProximityMatcher {
	threshold := config.TitleThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}

	radius := config.RadiusMeters
	if radius <= 0 {
		radius = 75
	}

	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist < 0 {
		fuzzyDist = 0
	}

	return &TitleProximityMatcher{
		titleThreshold:    threshold,
		radiusMeters:      radius,
		fuzzyEditDistance: fuzzyDist,
	}
}

// Equivalent implements Matcher
func (m *TitleProximityMatcher) Equivalent(a, b *domain.CanonicalProduct) bool {
	if a == nil || b == nil || a.Location == nil || b.Location == nil {
		return false
	}

	if haversineMeters(*a.Location, *b.Location) > m.radiusMeters {
		return false
	}

	return m.titleSimilarity(a.Title, b.Title) >= m.titleThreshold
}

// titleSimilarity returns the Jaccard similarity of the two token sets,
// counting near-identical tokens as equal when fuzzy matching is enabled
func (m *TitleProximityMatcher) titleSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matched := 0
	used := make([]bool, len(tokensB))
	for _, ta := range tokensA {
		for j, tb := range tokensB {
			if used[j] {
				continue
			}
			if ta == tb || (m.fuzzyEditDistance > 0 && fuzzyTokenMatch(ta, tb, m.fuzzyEditDistance)) {
				used[j] = true
				matched++
				break
			}
		}
	}

	union := len(tokensA) + len(tokensB) - matched
	return float64(matched) / float64(union)
}

// tokenize splits a string into normalized lowercase tokens, deduplicated,
// without stop words
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(cleaned) {
		if titleStopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}

	return tokens
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Short tokens produce too many false positives
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// haversineMeters returns the great-circle distance between two points
func haversineMeters(a, b domain.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

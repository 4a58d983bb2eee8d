package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// maxQueryLength is a byte limit that keeps provider query strings within
// what their APIs accept
const maxQueryLength = 100

// QueryPreprocessor strips conversational filler from free-text queries so
// providers receive just the thing being searched for
type QueryPreprocessor struct {
	enableDebugLogging bool
}

// Compiled regex patterns for query preprocessing
var (
	// Matches proximity phrases like "near me", "nearby", "around here", "close by"
	proximityPattern = regexp.MustCompile(`(?i)\b(near\s+me|nearby|near\s+by|around\s+here|close\s+by|in\s+my\s+area)\b`)

	// Matches leading requests like "find me", "show me some", "i want", "looking for"
	requestPattern = regexp.MustCompile(`(?i)^\s*(please\s+)?(find|show|get|give|recommend)(\s+me)?(\s+(some|a|an|the))?\b|^\s*(i\s+want|i'm\s+looking\s+for|im\s+looking\s+for|looking\s+for|i\s+need|where\s+can\s+i\s+get)(\s+(some|a|an|the))?\b`)

	orphanedPunctuation = regexp.MustCompile(`^\s*[,\-;:?!.]+|[,\-;:?!]+\s*$|\s+[,\-;:]+\s+`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// queryNoiseWords are dropped wherever they appear
var queryNoiseWords = map[string]bool{
	"please":    true,
	"best":      true,
	"good":      true,
	"great":     true,
	"tasty":     true,
	"delicious": true,
	"awesome":   true,
	"really":    true,
	"some":      true,
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(enableDebugLogging bool) *QueryPreprocessor {
	return &QueryPreprocessor{
		enableDebugLogging: enableDebugLogging,
	}
}

// PreprocessQuery cleans a user query for provider search.
// When cleaning would leave nothing, the trimmed original is returned.
func (p *QueryPreprocessor) PreprocessQuery(query string) string {
	original := strings.TrimSpace(query)
	if original == "" {
		return ""
	}

	cleaned := requestPattern.ReplaceAllString(original, " ")
	cleaned = proximityPattern.ReplaceAllString(cleaned, " ")
	cleaned = p.removeNoiseWords(cleaned)
	cleaned = orphanedPunctuation.ReplaceAllString(cleaned, " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		cleaned = multiSpacePattern.ReplaceAllString(original, " ")
	}

	if len(cleaned) > maxQueryLength {
		// Never split a multi-byte character
		cut := maxQueryLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
		// Cut at a word boundary when one is reasonably close
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	if p.enableDebugLogging {
		log.Debug().Str("input", original).Str("output", cleaned).Msg("preprocessed query")
	}

	return cleaned
}

// removeNoiseWords removes filler terms from the query, keeping word order
func (p *QueryPreprocessor) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		cleanWord := strings.ToLower(strings.Trim(word, ",.!?;:-'\""))
		if !queryNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}

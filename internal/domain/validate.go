package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	schemaValidator     *validator.Validate
	schemaValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	schemaValidatorOnce.Do(func() {
		schemaValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return schemaValidator
}

// Validate checks a record against the canonical schema.
// It returns nil or a *ValidationError describing every violation found.
func Validate(p *CanonicalProduct) error {
	if p == nil {
		return &ValidationError{Problems: []string{"record is nil"}}
	}

	var problems []string

	if err := getValidator().Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &ValidationError{ProductID: p.CanonicalProductID, Problems: []string{err.Error()}}
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if p.CanonicalProductID != "" {
		if _, _, err := ParseCanonicalID(p.CanonicalProductID); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if p.Title != "" && strings.TrimSpace(p.Title) == "" {
		problems = append(problems, "title is blank")
	}

	seen := make(map[string]bool, len(p.Sources))
	for i, s := range p.Sources {
		if s.LastFetchedAt.IsZero() {
			problems = append(problems, fmt.Sprintf("sources[%d].lastFetchedAt is required", i))
		}
		key := s.Provider + canonicalIDSeparator + s.ProviderProductID
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate source %s/%s", s.Provider, s.ProviderProductID))
		}
		seen[key] = true
	}

	for i, img := range p.Images {
		if !isHTTPURL(img) {
			problems = append(problems, fmt.Sprintf("images[%d] is not an http(s) URL", i))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{ProductID: p.CanonicalProductID, Problems: dedupe(problems)}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "CanonicalProduct.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// NormalizeWebsite turns a provider website value into an absolute http(s)
// URL, adding https:// when the scheme is missing. Values that still do not
// parse yield nil so the field is left unset instead of failing the record.
func NormalizeWebsite(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if !isHTTPURL(raw) {
		return nil
	}
	return &raw
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLocationNotFound is returned when the location resolver cannot produce coordinates
	ErrLocationNotFound = errors.New("could not resolve location")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrProviderTimeout is returned when a connector exceeds its time budget
	ErrProviderTimeout = errors.New("provider timed out")

	// ErrProviderFailure is returned when a provider call fails (network, status, parse)
	ErrProviderFailure = errors.New("provider request failed")

	// ErrValidation is returned when a record fails canonical schema validation
	ErrValidation = errors.New("record failed validation")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoConnectors is returned when the engine is built without any search connector
	ErrNoConnectors = errors.New("no search connectors configured")
)

// ErrorKind classifies recoverable failures for the diagnostics channel
type ErrorKind string

const (
	KindProviderTimeout ErrorKind = "ProviderTimeout"
	KindProviderError   ErrorKind = "ProviderError"
	KindValidationError ErrorKind = "ValidationError"
	KindNoResults       ErrorKind = "NoResults"
)

// ProviderError describes a failed call to a third-party provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

// NewProviderError builds a ProviderError; 5xx and 429 responses are retryable
func NewProviderError(provider string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Retryable:  statusCode == 0 || statusCode == 429 || statusCode >= 500,
		Err:        err,
	}
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderFailure) match any ProviderError
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// IsRetryable reports whether err is a ProviderError worth another attempt
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// ValidationError lists the schema violations of one record
type ValidationError struct {
	ProductID string
	Problems  []string
}

func (e *ValidationError) Error() string {
	id := e.ProductID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("invalid record %s: %s", id, strings.Join(e.Problems, "; "))
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

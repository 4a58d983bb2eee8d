package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are stored as JSON; Get decodes into dest and returns ErrCacheMiss
// for absent or expired keys.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocationResolver turns a free-text location into coordinates.
// It returns ErrLocationNotFound when no coordinates can be produced.
type LocationResolver interface {
	Resolve(ctx context.Context, location string) (Coordinates, error)
}

// Connector is the common part of every provider adapter
type Connector interface {
	Name() string
}

// SearchConnector yields partial canonical records for a query.
// "No results" is an empty batch with a nil error; a non-nil error reports a
// provider failure and never affects sibling connectors.
type SearchConnector interface {
	Connector
	Search(ctx context.Context, query SearchQuery) (SearchBatch, error)
}

// EnrichConnector returns supplementary data for an existing record.
// A nil result with a nil error means no enrichment was found. Implementations
// receive a copy of the record and must not retain or mutate it.
type EnrichConnector interface {
	Connector
	Enrich(ctx context.Context, product CanonicalProduct) (*EnrichmentData, error)
}

package domain

import "strings"

// Coordinates is the output of the location resolver
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchRequest is the caller-facing aggregation request. Either Location
// or both Lat and Lon must be provided.
type SearchRequest struct {
	Query    string   `json:"query" form:"q"`
	Location string   `json:"location,omitempty" form:"location"`
	Lat      *float64 `json:"lat,omitempty" form:"lat"`
	Lon      *float64 `json:"lon,omitempty" form:"lon"`
	Limit    int      `json:"limit,omitempty" form:"limit"`
}

// HasCoordinates reports whether the request carries pre-resolved coordinates
func (r *SearchRequest) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// Validate checks the request shape before any provider is contacted
func (r *SearchRequest) Validate() bool {
	if r == nil || strings.TrimSpace(r.Query) == "" {
		return false
	}
	if r.Limit < 0 {
		return false
	}
	if r.HasCoordinates() {
		return *r.Lat >= -90 && *r.Lat <= 90 && *r.Lon >= -180 && *r.Lon <= 180
	}
	return strings.TrimSpace(r.Location) != ""
}

// SearchQuery is what a search connector receives
type SearchQuery struct {
	Text      string
	Latitude  float64
	Longitude float64
	Limit     int
}

// SearchBatch is the output of one search connector call. Products have
// passed Validate; records that did not are listed in Rejected.
type SearchBatch struct {
	Products []CanonicalProduct
	Rejected []*ValidationError
}

// Phase names the engine stage a diagnostic belongs to
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseSearch  Phase = "search"
	PhaseEnrich  Phase = "enrich"
)

// Diagnostic is one entry of the per-request failure report
type Diagnostic struct {
	Connector string    `json:"connector"`
	Phase     Phase     `json:"phase"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message,omitempty"`
	ProductID string    `json:"productId,omitempty"`
}

// AggregationResult is the engine output for one request
type AggregationResult struct {
	RequestID   string             `json:"requestId"`
	Products    []CanonicalProduct `json:"products"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
}

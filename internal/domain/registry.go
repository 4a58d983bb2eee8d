package domain

import "time"

// Registration binds a connector to the engine-side policy that governs it.
// A connector is search-capable when Search is set and enrich-capable when
// Enrich is set. Registration order decides merge precedence.
type Registration struct {
	Name    string
	Search  SearchConnector
	Enrich  EnrichConnector
	Timeout time.Duration
	Retries int
}

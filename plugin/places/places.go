// Package places provides place search against a Places-style text search API.
package places

import "context"

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a resolved place record.
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Rating   float64  `json:"rating"`
	Types    []string `json:"types"`
	Location LatLng   `json:"location"`
}

// SearchService is the place search service interface.
type SearchService interface {
	// TextSearch resolves a free-text query anchored at a location.
	// Results are ordered by upstream relevance; an empty slice is not an
	// error, it just means the query resolved to nothing.
	TextSearch(ctx context.Context, query string, location LatLng, radiusMeters int) ([]Place, error)
}

// DetailsService fetches the full record for a known place id. Implemented by
// Client; optional for callers that can live with text-search results alone.
type DetailsService interface {
	Details(ctx context.Context, placeID string) (*Place, error)
}

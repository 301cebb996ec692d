package store

// PlaceCacheEntry represents a cached enriched place payload.
type PlaceCacheEntry struct {
	PlaceID   string
	Payload   []byte // opaque serialized place record
	UpdatedTs int64
}

// FindPlaceCache specifies the conditions for finding a place cache entry.
type FindPlaceCache struct {
	PlaceID string
}

// UpsertPlaceCache specifies the data for upserting a place cache entry.
type UpsertPlaceCache struct {
	PlaceID   string
	Payload   []byte
	UpdatedTs int64
}

// Package fingerprint builds and owns the normalized behavioral profile for
// each user. It is the only writer of BehavioralFingerprint values; every
// other component reads snapshots and reacts to change events.
package fingerprint

// Coordinate is a plain geographic coordinate.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// InteractionEntry is one row of the user's interaction log.
type InteractionEntry struct {
	PlaceID   string         `json:"placeId"`
	PlaceName string         `json:"placeName"`
	Category  string         `json:"category"`
	Action    string         `json:"action"` // like, dislike, visit, view
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// BehavioralFingerprint is the normalized user profile. It is rebuilt in full
// on every upstream document change; there is no incremental patching.
type BehavioralFingerprint struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`

	LastKnownLocation *Coordinate `json:"lastKnownLocation,omitempty"`
	CurrentLocation   *Coordinate `json:"currentLocation,omitempty"`

	LikedPlaces         []string       `json:"likedPlaces"`
	DislikedPlaces      []string       `json:"dislikedPlaces"`
	TagAffinities       map[string]int `json:"tagAffinities"`
	RecentMoods         []string       `json:"recentMoods"`
	RecentCuisines      []string       `json:"recentCuisines"`
	PreferredPlaceTypes []string       `json:"preferredPlaceTypes"`

	Interactions []InteractionEntry `json:"interactions"`

	LikeCount    int `json:"likeCount"`
	DislikeCount int `json:"dislikeCount"`
}

// Default returns the default-seeded fingerprint used on first load and as
// the base for any document missing optional fields. The seeds keep prompt
// construction from ever operating on an empty profile.
func Default(userID string) *BehavioralFingerprint {
	return &BehavioralFingerprint{
		UserID:              userID,
		LikedPlaces:         []string{"local cafes"},
		DislikedPlaces:      []string{"crowded chains"},
		TagAffinities:       map[string]int{"local": 1, "cozy": 1},
		RecentMoods:         []string{"curious"},
		RecentCuisines:      []string{"italian"},
		PreferredPlaceTypes: []string{"restaurants", "cafes"},
		Interactions:        []InteractionEntry{},
	}
}

// seedDefaults fills any empty list/mapping field with its default seed.
// The interaction log is the exception: a fabricated interaction would leak
// into history-based prompting, so it only gets normalized to non-nil.
func seedDefaults(fp *BehavioralFingerprint) {
	seed := Default(fp.UserID)
	if len(fp.LikedPlaces) == 0 {
		fp.LikedPlaces = seed.LikedPlaces
	}
	if len(fp.DislikedPlaces) == 0 {
		fp.DislikedPlaces = seed.DislikedPlaces
	}
	if len(fp.TagAffinities) == 0 {
		fp.TagAffinities = seed.TagAffinities
	}
	if len(fp.RecentMoods) == 0 {
		fp.RecentMoods = seed.RecentMoods
	}
	if len(fp.RecentCuisines) == 0 {
		fp.RecentCuisines = seed.RecentCuisines
	}
	if len(fp.PreferredPlaceTypes) == 0 {
		fp.PreferredPlaceTypes = seed.PreferredPlaceTypes
	}
	if fp.Interactions == nil {
		fp.Interactions = []InteractionEntry{}
	}
	if fp.LikeCount == 0 {
		fp.LikeCount = countAction(fp.Interactions, "like")
	}
	if fp.DislikeCount == 0 {
		fp.DislikeCount = countAction(fp.Interactions, "dislike")
	}
}

func countAction(entries []InteractionEntry, action string) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// significantChange reports whether next differs from prev in a way that
// warrants regenerating recommendations. Only likes, dislikes and the
// interaction-log length count; cosmetic field churn is ignored. Location
// moves alone deliberately do not trigger regeneration.
func significantChange(prev, next *BehavioralFingerprint) bool {
	if prev == nil {
		return false
	}
	return prev.LikeCount != next.LikeCount ||
		prev.DislikeCount != next.DislikeCount ||
		len(prev.Interactions) != len(next.Interactions)
}

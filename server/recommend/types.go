// Package recommend implements the recommendation pipeline: prompt
// construction, completion-response repair, place enrichment and ranking,
// and the per-user orchestration around them.
package recommend

import (
	"time"

	"github.com/placesense/placesense/plugin/places"
	"github.com/placesense/placesense/server/fingerprint"
)

// Category is the canonical place category.
type Category string

const (
	CategoryRestaurants Category = "restaurants"
	CategoryCafes       Category = "cafes"
	CategoryBars        Category = "bars"
	CategoryShopping    Category = "shopping"
	CategoryVenues      Category = "venues"
)

// AIRecommendation is one raw candidate extracted from the model response.
// Ephemeral; never persisted.
type AIRecommendation struct {
	PlaceName           string   `json:"placeName"`
	Category            string   `json:"category"`
	PersonalizedReason  string   `json:"personalizedReason"`
	ConfidenceScore     float64  `json:"confidenceScore"`
	MatchingPreferences []string `json:"matchingPreferences"`
}

// PersonalizedRecommendation is the final output unit: a raw candidate
// resolved against a real place record.
type PersonalizedRecommendation struct {
	ID                  string           `json:"id"`
	Place               places.Place     `json:"place"`
	Source              AIRecommendation `json:"source"`
	Reason              string           `json:"reason"`
	Confidence          float64          `json:"confidence"`
	MatchingPreferences []string         `json:"matchingPreferences"`
	Category            Category         `json:"category"`
}

// Context is the ephemeral per-run input, built once per orchestration run.
type Context struct {
	UserID             string                             `json:"userId"`
	Location           *fingerprint.Coordinate            `json:"location,omitempty"`
	Timestamp          time.Time                          `json:"timestamp"`
	Weather            string                             `json:"weather,omitempty"`
	Fingerprint        *fingerprint.BehavioralFingerprint `json:"fingerprint"`
	PreviousPlaceNames []string                           `json:"previousPlaceNames,omitempty"`
}

// Snapshot is the published output consumed by the presentation layer.
// A run replaces the whole snapshot atomically; consumers never observe a
// partial merge of two runs.
type Snapshot struct {
	Recommendations []PersonalizedRecommendation `json:"recommendations"`
	LastUpdated     time.Time                    `json:"lastUpdated"`
	IsGenerating    bool                         `json:"isGenerating"`
}

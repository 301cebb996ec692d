package recommend

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/placesense/placesense/plugin/places"
	"github.com/placesense/placesense/store/cache"
)

const (
	searchRadiusMeters = 5000
	searchTimeout      = 10 * time.Second
	maxParallelLookups = 4
)

// categoryRules is the fixed precedence table mapping place-search type tags
// to canonical categories. Earlier rules win when a place carries tags from
// several groups.
var categoryRules = []struct {
	category Category
	tags     []string
}{
	{CategoryRestaurants, []string{"restaurant", "food", "meal_takeaway"}},
	{CategoryCafes, []string{"cafe", "bakery"}},
	{CategoryBars, []string{"bar", "night_club", "liquor_store"}},
	{CategoryShopping, []string{"shopping_mall", "store", "clothing_store"}},
	{CategoryVenues, []string{"tourist_attraction", "amusement_park", "museum"}},
}

// InferCategory maps place-search type tags onto a canonical category.
// Unrecognized tag sets default to restaurants.
func InferCategory(tags []string) Category {
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, rule := range categoryRules {
		for _, t := range rule.tags {
			if _, ok := tagSet[t]; ok {
				return rule.category
			}
		}
	}
	return CategoryRestaurants
}

// Enricher resolves raw candidates against the place search service and
// produces the ranked result set.
type Enricher struct {
	search  places.SearchService
	details places.DetailsService // optional
	cache   *cache.PlaceCache     // optional
}

// NewEnricher creates an Enricher. details and placeCache may be nil.
func NewEnricher(search places.SearchService, details places.DetailsService, placeCache *cache.PlaceCache) *Enricher {
	return &Enricher{
		search:  search,
		details: details,
		cache:   placeCache,
	}
}

// Enrich resolves each candidate within the search radius of location.
// Candidates that resolve to nothing are silently dropped: the model
// hallucinated a place that does not exist. The result is ordered by
// descending confidence, ties broken by input order.
func (e *Enricher) Enrich(ctx context.Context, candidates []AIRecommendation, location places.LatLng) []PersonalizedRecommendation {
	resolved := make([]*PersonalizedRecommendation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			rec := e.resolve(gctx, candidate, location)
			resolved[i] = rec
			return nil
		})
	}
	// Lookups never report errors; failed candidates are simply dropped.
	_ = g.Wait()

	results := make([]PersonalizedRecommendation, 0, len(candidates))
	for _, rec := range resolved {
		if rec != nil {
			results = append(results, *rec)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

func (e *Enricher) resolve(ctx context.Context, candidate AIRecommendation, location places.LatLng) *PersonalizedRecommendation {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	query := strings.TrimSpace(candidate.PlaceName + " " + candidate.Category)
	matches, err := e.search.TextSearch(ctx, query, location, searchRadiusMeters)
	if err != nil {
		slog.Warn("place search failed, dropping candidate", "query", query, "error", err)
		return nil
	}
	if len(matches) == 0 {
		slog.Debug("no place match for candidate", "query", query)
		return nil
	}
	place := e.canonicalPlace(ctx, matches[0])

	return &PersonalizedRecommendation{
		ID:                  uuid.NewString(),
		Place:               place,
		Source:              candidate,
		Reason:              candidate.PersonalizedReason,
		Confidence:          candidate.ConfidenceScore,
		MatchingPreferences: candidate.MatchingPreferences,
		Category:            InferCategory(place.Types),
	}
}

// canonicalPlace returns the full place record for a search match: cached
// payload first, then the details endpoint, then the match itself. The
// result lands in the cache either way so the next run skips the round-trip.
func (e *Enricher) canonicalPlace(ctx context.Context, match places.Place) places.Place {
	if e.cache != nil {
		if payload, ok := e.cache.Get(ctx, match.ID); ok {
			var cached places.Place
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached
			}
		}
	}

	place := match
	if e.details != nil {
		if full, err := e.details.Details(ctx, match.ID); err == nil {
			place = *full
		} else {
			slog.Debug("place details lookup failed, using search match", "place_id", match.ID, "error", err)
		}
	}

	if e.cache != nil {
		if payload, err := json.Marshal(place); err == nil {
			e.cache.Put(ctx, place.ID, payload)
		}
	}
	return place
}

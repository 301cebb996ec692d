package recommend

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxPromptTags  = 5
	maxPromptLikes = 5
	maxPromptItems = 5
)

// BuildPrompt serializes the run context into the model instruction.
// The wording is tunable copy; the demanded response schema is not.
func BuildPrompt(rctx *Context) string {
	fp := rctx.Fingerprint
	var b strings.Builder

	b.WriteString("You are a local guide recommending places to one specific person.\n\n")
	b.WriteString("What we know about them:\n")

	if tags := topTags(fp.TagAffinities, maxPromptTags); len(tags) > 0 {
		fmt.Fprintf(&b, "- Strongest interests: %s\n", strings.Join(tags, ", "))
	}
	if len(fp.LikedPlaces) > 0 {
		fmt.Fprintf(&b, "- Recently liked: %s\n", strings.Join(tail(fp.LikedPlaces, maxPromptLikes), ", "))
	}
	if len(fp.DislikedPlaces) > 0 {
		fmt.Fprintf(&b, "- Disliked: %s\n", strings.Join(tail(fp.DislikedPlaces, maxPromptLikes), ", "))
	}
	if len(fp.RecentMoods) > 0 {
		fmt.Fprintf(&b, "- Recent moods: %s\n", strings.Join(tail(fp.RecentMoods, maxPromptItems), ", "))
	}
	if len(fp.RecentCuisines) > 0 {
		fmt.Fprintf(&b, "- Recent cuisines: %s\n", strings.Join(tail(fp.RecentCuisines, maxPromptItems), ", "))
	}
	if len(fp.PreferredPlaceTypes) > 0 {
		fmt.Fprintf(&b, "- Preferred place types: %s\n", strings.Join(fp.PreferredPlaceTypes, ", "))
	}

	if rctx.Location != nil {
		fmt.Fprintf(&b, "- Current location: %.4f,%.4f\n", rctx.Location.Lat, rctx.Location.Lng)
	}
	fmt.Fprintf(&b, "- Local time: %s\n", rctx.Timestamp.Format("Monday 15:04"))
	if rctx.Weather != "" {
		fmt.Fprintf(&b, "- Weather: %s\n", rctx.Weather)
	}
	if len(rctx.PreviousPlaceNames) > 0 {
		fmt.Fprintf(&b, "- Already recommended last time (avoid repeating): %s\n",
			strings.Join(tail(rctx.PreviousPlaceNames, maxPromptItems), ", "))
	}

	b.WriteString("\nSuggest 5 places near their location that fit this profile right now.\n")
	b.WriteString("Respond with ONLY a JSON array, no prose, no markdown fences. Each element:\n")
	b.WriteString(`{"placeName": "...", "category": "restaurants|cafes|bars|shopping|venues", ` +
		`"personalizedReason": "...", "confidenceScore": 0.0, "matchingPreferences": ["..."]}` + "\n")
	return b.String()
}

// topTags returns up to n tag names ordered by descending affinity.
// Ties break alphabetically so prompt construction stays deterministic.
func topTags(affinities map[string]int, n int) []string {
	type tagScore struct {
		tag   string
		score int
	}
	scored := make([]tagScore, 0, len(affinities))
	for tag, score := range affinities {
		scored = append(scored, tagScore{tag, score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tag < scored[j].tag
	})

	if len(scored) > n {
		scored = scored[:n]
	}
	tags := make([]string, len(scored))
	for i, s := range scored {
		tags[i] = s.tag
	}
	return tags
}

// tail returns the last n elements, preserving order.
func tail(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

package recommend

// fallbackCandidates is the deterministic candidate set used when the
// completion service fails or repair yields nothing. Generic enough that
// place search resolves them almost anywhere, so the user is never shown an
// empty screen.
func fallbackCandidates() []AIRecommendation {
	return []AIRecommendation{
		{
			PlaceName:           "popular local restaurant",
			Category:            string(CategoryRestaurants),
			PersonalizedReason:  "A well-reviewed spot close to you",
			ConfidenceScore:     0.7,
			MatchingPreferences: []string{"nearby"},
		},
		{
			PlaceName:           "cozy coffee shop",
			Category:            string(CategoryCafes),
			PersonalizedReason:  "A quiet place for a coffee break",
			ConfidenceScore:     0.75,
			MatchingPreferences: []string{"cozy"},
		},
		{
			PlaceName:           "highly rated bar",
			Category:            string(CategoryBars),
			PersonalizedReason:  "A lively option for later in the day",
			ConfidenceScore:     0.65,
			MatchingPreferences: []string{"popular"},
		},
	}
}

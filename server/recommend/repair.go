package recommend

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// defaultConfidence is used whenever a confidence value is missing or fails
// to parse. Neutral-positive; also carried by the fallback candidates.
const defaultConfidence = 0.7

// Repair extracts a best-effort candidate list from arbitrary model output.
// It is pure and deterministic, never returns an error and never panics.
// Stages, each attempted only if the previous produced nothing:
//  1. strip markdown code fences
//  2. slice to the outermost structured span (drops surrounding prose)
//  3. strict decode, wrapping a bare object into a one-element array
//  4. line-oriented key/value scanning for broken punctuation
//
// An empty result means the caller should apply its deterministic fallback.
func Repair(raw string) []AIRecommendation {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	text := stripFences(raw)
	if recs := decodeStrict(text); len(recs) > 0 {
		return recs
	}

	if span, ok := structuredSpan(text); ok {
		if recs := decodeStrict(span); len(recs) > 0 {
			return recs
		}
	}

	return scanKeyValues(raw)
}

// stripFences removes markdown code-fence markers and surrounding whitespace.
func stripFences(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// structuredSpan slices the text to the span between the first opening
// bracket/brace and the last matching closer, discarding leading and
// trailing prose.
func structuredSpan(text string) (string, bool) {
	arrayStart := strings.Index(text, "[")
	objectStart := strings.Index(text, "{")

	start, closer := -1, ""
	switch {
	case arrayStart >= 0 && (objectStart < 0 || arrayStart < objectStart):
		start, closer = arrayStart, "]"
	case objectStart >= 0:
		start, closer = objectStart, "}"
	default:
		return "", false
	}

	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// rawCandidate is the tolerant decode target for one model candidate.
type rawCandidate struct {
	PlaceName           string      `json:"placeName"`
	Category            string      `json:"category"`
	PersonalizedReason  string      `json:"personalizedReason"`
	ConfidenceScore     flexScore   `json:"confidenceScore"`
	MatchingPreferences flexStrings `json:"matchingPreferences"`
}

func decodeStrict(text string) []AIRecommendation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var rawList []rawCandidate
	if err := json.Unmarshal([]byte(trimmed), &rawList); err != nil {
		// A single object decodes as a one-element array.
		var single rawCandidate
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil
		}
		rawList = []rawCandidate{single}
	}

	recs := make([]AIRecommendation, 0, len(rawList))
	for _, r := range rawList {
		if strings.TrimSpace(r.PlaceName) == "" {
			continue
		}
		recs = append(recs, AIRecommendation{
			PlaceName:           strings.TrimSpace(r.PlaceName),
			Category:            strings.TrimSpace(r.Category),
			PersonalizedReason:  strings.TrimSpace(r.PersonalizedReason),
			ConfidenceScore:     normalizeScore(float64(r.ConfidenceScore)),
			MatchingPreferences: r.MatchingPreferences,
		})
	}
	return recs
}

// keyPattern matches the schema keys with or without JSON quoting, which is
// what survives when the model mangles array/object punctuation.
var keyPattern = regexp.MustCompile(`"?(placeName|category|personalizedReason|confidenceScore|matchingPreferences)"?\s*:`)

// scanKeyValues walks the raw text line by line and accumulates field values
// by key match. Whenever four or more fields have been collected, one
// candidate is emitted and the accumulator resets.
func scanKeyValues(raw string) []AIRecommendation {
	var recs []AIRecommendation
	working := map[string]string{}

	emit := func() {
		name := working["placeName"]
		if name != "" {
			recs = append(recs, AIRecommendation{
				PlaceName:           name,
				Category:            working["category"],
				PersonalizedReason:  working["personalizedReason"],
				ConfidenceScore:     parseScore(working["confidenceScore"]),
				MatchingPreferences: splitPreferences(working["matchingPreferences"]),
			})
		}
		working = map[string]string{}
	}

	for _, line := range strings.Split(raw, "\n") {
		matches := keyPattern.FindAllStringSubmatchIndex(line, -1)
		for i, m := range matches {
			key := line[m[2]:m[3]]
			valueStart := m[1]
			valueEnd := len(line)
			if i+1 < len(matches) {
				valueEnd = matches[i+1][0]
			}
			working[key] = cleanScannedValue(line[valueStart:valueEnd])
			if len(working) >= 4 {
				emit()
			}
		}
	}
	return recs
}

// cleanScannedValue strips the JSON punctuation that may cling to a scanned
// value: quotes, trailing commas, stray brackets and braces.
func cleanScannedValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, ",")
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "[]{}")
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"`)
	return strings.TrimSpace(v)
}

func splitPreferences(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), `"`))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseScore(v string) float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultConfidence
	}
	return normalizeScore(score)
}

// normalizeScore clamps into [0,1] and maps the missing-value zero to the
// neutral default.
func normalizeScore(score float64) float64 {
	if score <= 0 {
		return defaultConfidence
	}
	if score > 1 {
		return 1
	}
	return score
}

// flexScore decodes a confidence score from a JSON number or a numeric
// string; anything else falls back to the neutral default.
type flexScore float64

func (f *flexScore) UnmarshalJSON(b []byte) error {
	var number float64
	if err := json.Unmarshal(b, &number); err == nil {
		*f = flexScore(number)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if number, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*f = flexScore(number)
			return nil
		}
	}
	*f = flexScore(defaultConfidence)
	return nil
}

// flexStrings decodes a string list from a JSON array (ignoring non-string
// elements) or from a comma-separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var items []any
	if err := json.Unmarshal(b, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		*f = out
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*f = splitPreferences(str)
		return nil
	}
	*f = nil
	return nil
}

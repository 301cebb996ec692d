package fingerprint

import "time"

// SanitizeDocument flattens vendor-specific temporal and spatial values in a
// raw document into plain scalars so the generic decoder never sees them.
// Handled shapes:
//   - time.Time values -> unix seconds
//   - {"seconds": n, "nanos": m} maps -> unix seconds
//   - {"latitude": x, "longitude": y} maps -> {"lat": x, "lng": y}
//
// Everything else passes through unchanged. The input is not mutated.
func SanitizeDocument(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Unix()
	case map[string]any:
		if ts, ok := timestampSeconds(val); ok {
			return ts
		}
		if geo, ok := geoPoint(val); ok {
			return geo
		}
		return SanitizeDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func timestampSeconds(m map[string]any) (int64, bool) {
	seconds, ok := m["seconds"]
	if !ok {
		return 0, false
	}
	// Reject maps that merely happen to carry a "seconds" key.
	for key := range m {
		if key != "seconds" && key != "nanos" && key != "nanoseconds" {
			return 0, false
		}
	}
	return asInt64(seconds)
}

func geoPoint(m map[string]any) (map[string]any, bool) {
	lat, latOK := asFloat64(m["latitude"])
	lng, lngOK := asFloat64(m["longitude"])
	if !latOK || !lngOK {
		return nil, false
	}
	return map[string]any{"lat": lat, "lng": lng}, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

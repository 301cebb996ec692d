package fingerprint

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Decode sanitizes a raw user document and decodes it into a
// default-seeded BehavioralFingerprint. The document's own userId wins over
// the supplied one when present.
func Decode(userID string, fields map[string]any) (*BehavioralFingerprint, error) {
	sanitized := SanitizeDocument(fields)

	raw, err := json.Marshal(sanitized)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-encode sanitized document")
	}

	fp := BehavioralFingerprint{}
	if err := json.Unmarshal(raw, &fp); err != nil {
		return nil, errors.Wrap(err, "failed to decode behavioral fingerprint")
	}

	if fp.UserID == "" {
		fp.UserID = userID
	}
	seedDefaults(&fp)
	return &fp, nil
}

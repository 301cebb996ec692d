package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/placesense/placesense/store"
)

// RecordInteractionRequest is the body for recording one user interaction.
type RecordInteractionRequest struct {
	PlaceID   string            `json:"placeId"`
	PlaceName string            `json:"placeName"`
	Category  string            `json:"category"`
	Action    string            `json:"action"` // like, dislike, visit, view
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RecordInteraction appends an interaction-log entry and bumps the related
// counters and tag affinities on the user document. The document watcher
// propagates the change to the fingerprint store, which decides whether it
// is significant enough to regenerate recommendations.
func (s *APIV1Service) RecordInteraction(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "uid is required")
	}
	// Register the watch before the write so this interaction already reaches
	// the fingerprint store.
	s.watchUser(uid)

	var req RecordInteractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == "" || req.PlaceName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action and placeName are required")
	}

	entry := map[string]any{
		"placeId":   req.PlaceID,
		"placeName": req.PlaceName,
		"category":  req.Category,
		"action":    action,
		"timestamp": time.Now().Unix(),
	}
	if len(req.Metadata) > 0 {
		metadata := make(map[string]any, len(req.Metadata))
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		entry["metadata"] = metadata
	}

	patch := &store.DocumentPatch{
		Increment: map[string]int64{},
		Append: map[string][]any{
			"interactions": {entry},
		},
	}
	switch action {
	case "like":
		patch.Increment["likeCount"] = 1
		patch.Append["likedPlaces"] = []any{req.PlaceName}
	case "dislike":
		patch.Increment["dislikeCount"] = 1
		patch.Append["dislikedPlaces"] = []any{req.PlaceName}
	}
	for _, tag := range req.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			patch.Increment["tagAffinities."+tag] = 1
		}
	}

	doc, err := s.Store.PatchUserDocument(c.Request().Context(), uid, patch)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record interaction")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"updatedTs": doc.UpdatedTs,
	})
}

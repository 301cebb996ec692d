package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetRecommendations returns the published recommendation list for a user,
// with the last-updated timestamp and the is-generating flag.
func (s *APIV1Service) GetRecommendations(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "uid is required")
	}
	s.watchUser(uid)
	return c.JSON(http.StatusOK, s.Orchestrator.Snapshot(uid))
}

// RefreshRecommendations triggers a generation run for a user. The run guard
// applies: a request arriving while a run is in flight is dropped.
func (s *APIV1Service) RefreshRecommendations(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "uid is required")
	}
	s.watchUser(uid)

	if s.Orchestrator.Snapshot(uid).IsGenerating {
		return c.JSON(http.StatusConflict, map[string]any{
			"status": "already_generating",
		})
	}

	// The run outlives the HTTP request; the caller polls the snapshot.
	go s.Orchestrator.Generate(context.Background(), uid)
	return c.JSON(http.StatusAccepted, map[string]any{
		"status": "started",
	})
}

// GetRecommendationContext returns the context snapshot of the latest run,
// for diagnostic display.
func (s *APIV1Service) GetRecommendationContext(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "uid is required")
	}
	s.watchUser(uid)

	rctx := s.Orchestrator.CurrentContext(uid)
	if rctx == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"userId":      uid,
			"fingerprint": s.Fingerprints.Current(uid),
		})
	}
	return c.JSON(http.StatusOK, rctx)
}

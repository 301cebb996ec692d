// Package v1 exposes the recommendation pipeline's published output over
// HTTP. The pipeline never returns an error state to the presentation
// layer: the worst case body is an empty list with isGenerating set.
package v1

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/placesense/placesense/internal/profile"
	"github.com/placesense/placesense/server/fingerprint"
	"github.com/placesense/placesense/server/recommend"
	"github.com/placesense/placesense/store"
)

type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Fingerprints *fingerprint.Store
	Orchestrator *recommend.Orchestrator
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, fingerprints *fingerprint.Store, orchestrator *recommend.Orchestrator) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Store:        store,
		Fingerprints: fingerprints,
		Orchestrator: orchestrator,
	}
}

// RegisterRoutes registers all v1 routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/users/:uid/recommendations", s.GetRecommendations)
	g.POST("/users/:uid/recommendations/refresh", s.RefreshRecommendations)
	g.GET("/users/:uid/context", s.GetRecommendationContext)
	g.POST("/users/:uid/interactions", s.RecordInteraction)
}

// watchUser lazily starts fingerprint tracking on the first API touch of a
// uid; repeated calls are no-ops. The watch outlives the request, so it is
// deliberately not tied to the request context.
func (s *APIV1Service) watchUser(uid string) {
	if err := s.Fingerprints.Watch(context.Background(), uid); err != nil {
		slog.Warn("failed to watch user document", "uid", uid, "error", err)
	}
}

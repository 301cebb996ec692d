// Package server wires the recommendation pipeline together: document store,
// tiered place cache, completion and search providers, fingerprint store,
// orchestrator and the HTTP surface. Everything is explicitly constructed
// here and passed by reference; there are no ambient singletons.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/placesense/placesense/internal/profile"
	"github.com/placesense/placesense/plugin/ai"
	"github.com/placesense/placesense/plugin/places"
	"github.com/placesense/placesense/plugin/weather"
	"github.com/placesense/placesense/server/fingerprint"
	"github.com/placesense/placesense/server/recommend"
	apiv1 "github.com/placesense/placesense/server/router/api/v1"
	"github.com/placesense/placesense/store"
	"github.com/placesense/placesense/store/cache"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	placeCache   *cache.PlaceCache
	fingerprints *fingerprint.Store
	orchestrator *recommend.Orchestrator

	cancel context.CancelFunc
}

func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	if err := st.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to migrate store")
	}

	var shared cache.SharedCache
	if profile.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(ctx, &cache.RedisConfig{
			Addr:     profile.RedisAddr,
			Password: profile.RedisPassword,
			TTL:      profile.CacheTTL,
		})
		if err != nil {
			slog.Warn("redis unavailable, continuing with memory and store tiers", "error", err)
		} else {
			shared = redisCache
		}
	}
	placeCache := cache.NewPlaceCache(cache.Config{
		MemoryCapacity: 1000,
		TTL:            profile.CacheTTL,
	}, shared, st)

	var completion ai.CompletionService
	if profile.IsAIEnabled() {
		provider, err := ai.NewProvider(&ai.Config{
			BaseURL: profile.AIBaseURL,
			APIKey:  profile.AIAPIKey,
			Model:   profile.AIModel,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create completion provider")
		}
		completion = provider
	} else {
		slog.Warn("no completion provider configured, runs will use fallback candidates")
		completion = ai.Disabled{}
	}

	placesClient := places.NewClient(&places.Config{
		BaseURL: profile.PlacesBaseURL,
		APIKey:  profile.PlacesAPIKey,
	})

	var weatherProvider weather.Provider
	if profile.WeatherBaseURL != "" {
		weatherProvider = weather.NewClient(&weather.Config{BaseURL: profile.WeatherBaseURL})
	}

	fingerprints := fingerprint.NewStore(st)
	enricher := recommend.NewEnricher(placesClient, placesClient, placeCache)
	orchestrator := recommend.NewOrchestrator(completion, enricher, fingerprints, weatherProvider)

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	apiv1.NewAPIV1Service(profile, st, fingerprints, orchestrator).RegisterRoutes(echoServer)

	return &Server{
		Profile:      profile,
		Store:        st,
		echoServer:   echoServer,
		placeCache:   placeCache,
		fingerprints: fingerprints,
		orchestrator: orchestrator,
	}, nil
}

// Start launches the orchestrator event loop, the cache maintenance ticker
// and the HTTP listener.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.orchestrator.Run(ctx)
	go s.runCacheMaintenance(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// runCacheMaintenance purges expired persistent cache rows periodically.
// The read path never depends on this; it is housekeeping only.
func (s *Server) runCacheMaintenance(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Store.PurgeExpiredPlaceCache(ctx, s.Profile.CacheTTL)
			if err != nil {
				slog.Warn("place cache purge failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("purged expired place cache entries", "count", deleted)
			}
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
	}

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown echo server", "error", err)
	}

	s.fingerprints.Close()
	if err := s.placeCache.Close(); err != nil {
		slog.Error("failed to close place cache", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("placesense stopped properly")
}

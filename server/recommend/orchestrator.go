package recommend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/placesense/placesense/plugin/ai"
	"github.com/placesense/placesense/plugin/places"
	"github.com/placesense/placesense/plugin/weather"
	"github.com/placesense/placesense/server/fingerprint"
)

const weatherTimeout = 5 * time.Second

// Orchestrator drives end-to-end recommendation runs: context build, prompt,
// completion, repair, enrichment and atomic publication. Runs are serialized
// per user by a simple in-progress guard; a trigger arriving mid-run is
// dropped rather than queued, because the fingerprint change event that
// eventually fires supersedes it.
type Orchestrator struct {
	completion   ai.CompletionService
	enricher     *Enricher
	fingerprints *fingerprint.Store
	weather      weather.Provider // optional

	mu        sync.Mutex
	inFlight  map[string]bool
	published map[string]*Snapshot
	previous  map[string][]string
	contexts  map[string]*Context
}

// NewOrchestrator creates an Orchestrator. weatherProvider may be nil.
func NewOrchestrator(completion ai.CompletionService, enricher *Enricher, fingerprints *fingerprint.Store, weatherProvider weather.Provider) *Orchestrator {
	return &Orchestrator{
		completion:   completion,
		enricher:     enricher,
		fingerprints: fingerprints,
		weather:      weatherProvider,
		inFlight:     make(map[string]bool),
		published:    make(map[string]*Snapshot),
		previous:     make(map[string][]string),
		contexts:     make(map[string]*Context),
	}
}

// Run consumes fingerprint change events until ctx is done. Each event
// triggers a generation attempt for its user; the run guard absorbs bursts.
func (o *Orchestrator) Run(ctx context.Context) {
	events, cancel := o.fingerprints.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			go o.Generate(ctx, event.UserID)
		}
	}
}

// Generate executes one orchestration run for a user. It returns the
// published recommendations and whether a run actually executed; started is
// false when another run for the same user was already in flight.
//
// Failures of the completion or search services never surface here: the
// worst case result is the deterministic fallback set.
func (o *Orchestrator) Generate(ctx context.Context, uid string) (recs []PersonalizedRecommendation, started bool) {
	if !o.begin(uid) {
		slog.Debug("generation already in progress, dropping trigger", "uid", uid)
		return nil, false
	}
	defer o.finish(uid)

	runID := shortuuid.New()
	rctx := o.buildContext(ctx, uid)
	slog.Info("starting recommendation run", "uid", uid, "run_id", runID)

	raw := ""
	if text, err := o.completion.Complete(ctx, BuildPrompt(rctx)); err != nil {
		slog.Warn("completion failed, using fallback candidates", "uid", uid, "run_id", runID, "error", err)
	} else {
		raw = text
	}

	candidates := Repair(raw)
	if len(candidates) == 0 {
		slog.Info("no usable candidates in completion, using fallback", "uid", uid, "run_id", runID)
		candidates = fallbackCandidates()
	}

	location := places.LatLng{}
	if rctx.Location != nil {
		location = places.LatLng{Lat: rctx.Location.Lat, Lng: rctx.Location.Lng}
	}
	results := o.enricher.Enrich(ctx, candidates, location)

	o.publish(uid, results)
	slog.Info("recommendation run finished", "uid", uid, "run_id", runID,
		"candidates", len(candidates), "resolved", len(results))
	return results, true
}

// Snapshot returns the current published output for a user.
func (o *Orchestrator) Snapshot(uid string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := Snapshot{IsGenerating: o.inFlight[uid]}
	if published, ok := o.published[uid]; ok {
		snapshot.Recommendations = published.Recommendations
		snapshot.LastUpdated = published.LastUpdated
	}
	return snapshot
}

// CurrentContext returns the context snapshot of the latest run, for
// diagnostics. Nil until the first run.
func (o *Orchestrator) CurrentContext(uid string) *Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.contexts[uid]
}

// buildContext assembles the ephemeral per-run context.
func (o *Orchestrator) buildContext(ctx context.Context, uid string) *Context {
	fp := o.fingerprints.Current(uid)

	rctx := &Context{
		UserID:      uid,
		Timestamp:   time.Now(),
		Fingerprint: fp,
	}
	if fp.CurrentLocation != nil {
		rctx.Location = fp.CurrentLocation
	} else if fp.LastKnownLocation != nil {
		rctx.Location = fp.LastKnownLocation
	}

	o.mu.Lock()
	rctx.PreviousPlaceNames = o.previous[uid]
	o.mu.Unlock()

	if o.weather != nil && rctx.Location != nil {
		wctx, cancel := context.WithTimeout(ctx, weatherTimeout)
		defer cancel()
		if condition, err := o.weather.CurrentCondition(wctx, rctx.Location.Lat, rctx.Location.Lng); err != nil {
			slog.Debug("weather lookup failed, continuing without it", "uid", uid, "error", err)
		} else {
			rctx.Weather = condition
		}
	}

	o.mu.Lock()
	o.contexts[uid] = rctx
	o.mu.Unlock()
	return rctx
}

func (o *Orchestrator) begin(uid string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[uid] {
		return false
	}
	o.inFlight[uid] = true
	return true
}

func (o *Orchestrator) finish(uid string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, uid)
}

// publish atomically replaces the previous run's output.
func (o *Orchestrator) publish(uid string, results []PersonalizedRecommendation) {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Place.Name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.published[uid] = &Snapshot{
		Recommendations: results,
		LastUpdated:     time.Now(),
	}
	o.previous[uid] = names
}

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/placesense/placesense/store"
)

// PersistentStore is the durable cache tier, shared across devices and
// sessions. *store.Store satisfies it.
type PersistentStore interface {
	GetPlaceCache(ctx context.Context, find *store.FindPlaceCache) (*store.PlaceCacheEntry, error)
	UpsertPlaceCache(ctx context.Context, upsert *store.UpsertPlaceCache) (*store.PlaceCacheEntry, error)
}

// PlaceCache memoizes enriched place payloads across tiers:
// - memory (fast, per-process, DEFAULT)
// - shared Redis (cross-process, OPTIONAL)
// - persistent store (durable, cross-session)
//
// An entry older than the TTL is treated as absent no matter which tier
// served it; expired persistent rows are left for the maintenance purge
// rather than deleted on the read path.
type PlaceCache struct {
	memory     *Memory
	shared     SharedCache
	persistent PersistentStore
	ttl        time.Duration

	now func() time.Time
}

// Config holds the tiered cache configuration.
type Config struct {
	MemoryCapacity int
	TTL            time.Duration
	// Now is the clock used for freshness checks. Defaults to time.Now;
	// overridden in tests.
	Now func() time.Time
}

// NewPlaceCache creates a tiered place cache. shared and persistent may be nil.
func NewPlaceCache(config Config, shared SharedCache, persistent PersistentStore) *PlaceCache {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &PlaceCache{
		memory:     NewMemory(config.MemoryCapacity),
		shared:     shared,
		persistent: persistent,
		ttl:        config.TTL,
		now:        config.Now,
	}
}

// Get returns the cached payload for a place id, checking memory first, then
// the shared tier, then the persistent store. A hit on a lower tier
// repopulates the memory tier.
func (c *PlaceCache) Get(ctx context.Context, placeID string) ([]byte, bool) {
	if payload, writtenAt, ok := c.memory.Get(placeID); ok {
		if c.fresh(writtenAt) {
			return payload, true
		}
	}

	if c.shared != nil {
		if payload, writtenAt, ok := c.shared.Get(ctx, placeID); ok && c.fresh(writtenAt) {
			c.memory.Set(placeID, payload, writtenAt)
			return payload, true
		}
	}

	if c.persistent != nil {
		entry, err := c.persistent.GetPlaceCache(ctx, &store.FindPlaceCache{PlaceID: placeID})
		if err != nil {
			slog.Warn("place cache persistent read failed", "place_id", placeID, "error", err)
			return nil, false
		}
		if entry != nil {
			writtenAt := time.Unix(entry.UpdatedTs, 0)
			if c.fresh(writtenAt) {
				c.memory.Set(placeID, entry.Payload, writtenAt)
				return entry.Payload, true
			}
		}
	}

	return nil, false
}

// Put stores a payload in all tiers. The memory tier is updated
// unconditionally; shared and persistent writes are fire-and-forget so a
// transient store error never blocks the current session's cache benefit.
func (c *PlaceCache) Put(ctx context.Context, placeID string, payload []byte) {
	writtenAt := c.now()
	c.memory.Set(placeID, payload, writtenAt)

	if c.shared != nil {
		if err := c.shared.Set(ctx, placeID, payload, writtenAt); err != nil {
			slog.Warn("place cache shared write failed", "place_id", placeID, "error", err)
		}
	}

	if c.persistent != nil {
		if _, err := c.persistent.UpsertPlaceCache(ctx, &store.UpsertPlaceCache{
			PlaceID:   placeID,
			Payload:   payload,
			UpdatedTs: writtenAt.Unix(),
		}); err != nil {
			slog.Warn("place cache persistent write failed", "place_id", placeID, "error", err)
		}
	}
}

// Size returns the number of entries held by the memory tier.
func (c *PlaceCache) Size() int {
	return c.memory.Size()
}

func (c *PlaceCache) fresh(writtenAt time.Time) bool {
	return c.now().Sub(writtenAt) < c.ttl
}

// Close releases the shared tier connection, if any.
func (c *PlaceCache) Close() error {
	if c.shared != nil {
		return c.shared.Close()
	}
	return nil
}

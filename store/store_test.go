package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placesense/placesense/internal/profile"
)

// memoryDriver is an in-memory Driver for store-level tests.
type memoryDriver struct {
	mu           sync.Mutex
	documents    map[string]*UserDocument
	placeCache   map[string]*PlaceCacheEntry
	initialized  bool
	migrateCalls int
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{
		documents:  make(map[string]*UserDocument),
		placeCache: make(map[string]*PlaceCacheEntry),
	}
}

func (d *memoryDriver) GetDB() *sql.DB { return nil }
func (d *memoryDriver) Close() error   { return nil }

func (d *memoryDriver) IsInitialized(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized, nil
}

func (d *memoryDriver) Migrate(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.migrateCalls++
	d.initialized = true
	return nil
}

func (d *memoryDriver) GetUserDocument(_ context.Context, find *FindUserDocument) (*UserDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.documents[find.UID], nil
}

func (d *memoryDriver) UpsertUserDocument(_ context.Context, upsert *UpsertUserDocument) (*UserDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().Unix()
	doc := &UserDocument{UID: upsert.UID, Fields: upsert.Fields, CreatedTs: now, UpdatedTs: now}
	if prev, ok := d.documents[upsert.UID]; ok {
		doc.CreatedTs = prev.CreatedTs
	}
	d.documents[upsert.UID] = doc
	return doc, nil
}

func (d *memoryDriver) UpsertPlaceCache(_ context.Context, upsert *UpsertPlaceCache) (*PlaceCacheEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := &PlaceCacheEntry{PlaceID: upsert.PlaceID, Payload: upsert.Payload, UpdatedTs: upsert.UpdatedTs}
	d.placeCache[upsert.PlaceID] = entry
	return entry, nil
}

func (d *memoryDriver) GetPlaceCache(_ context.Context, find *FindPlaceCache) (*PlaceCacheEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.placeCache[find.PlaceID], nil
}

func (d *memoryDriver) DeletePlaceCacheBefore(_ context.Context, beforeTs int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var deleted int64
	for id, entry := range d.placeCache {
		if entry.UpdatedTs < beforeTs {
			delete(d.placeCache, id)
			deleted++
		}
	}
	return deleted, nil
}

func newTestStore() *Store {
	return New(newMemoryDriver(), &profile.Profile{Mode: "dev"})
}

func TestApplyPatch(t *testing.T) {
	t.Run("Set", func(t *testing.T) {
		fields := map[string]any{}
		applyPatch(fields, &DocumentPatch{Set: map[string]any{"displayName": "Ada"}})
		assert.Equal(t, "Ada", fields["displayName"])
	})

	t.Run("IncrementFromZero", func(t *testing.T) {
		fields := map[string]any{}
		applyPatch(fields, &DocumentPatch{Increment: map[string]int64{"likeCount": 1}})
		assert.Equal(t, int64(1), fields["likeCount"])
	})

	t.Run("IncrementExisting", func(t *testing.T) {
		fields := map[string]any{"likeCount": float64(4)}
		applyPatch(fields, &DocumentPatch{Increment: map[string]int64{"likeCount": 2}})
		assert.Equal(t, int64(6), fields["likeCount"])
	})

	t.Run("Append", func(t *testing.T) {
		fields := map[string]any{"likedPlaces": []any{"Tartine"}}
		applyPatch(fields, &DocumentPatch{Append: map[string][]any{"likedPlaces": {"Zuni Cafe"}}})
		assert.Equal(t, []any{"Tartine", "Zuni Cafe"}, fields["likedPlaces"])
	})

	t.Run("AppendToMissingField", func(t *testing.T) {
		fields := map[string]any{}
		applyPatch(fields, &DocumentPatch{Append: map[string][]any{"interactions": {map[string]any{"action": "like"}}}})
		entries, ok := fields["interactions"].([]any)
		require.True(t, ok)
		assert.Len(t, entries, 1)
	})

	t.Run("DottedPathCreatesIntermediates", func(t *testing.T) {
		fields := map[string]any{}
		applyPatch(fields, &DocumentPatch{Increment: map[string]int64{"tagAffinities.cozy": 1}})

		affinities, ok := fields["tagAffinities"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, int64(1), affinities["cozy"])
	})

	t.Run("DottedPathIncrementsExisting", func(t *testing.T) {
		fields := map[string]any{"tagAffinities": map[string]any{"cozy": float64(2)}}
		applyPatch(fields, &DocumentPatch{Increment: map[string]int64{"tagAffinities.cozy": 1}})

		affinities := fields["tagAffinities"].(map[string]any)
		assert.Equal(t, int64(3), affinities["cozy"])
	})

	t.Run("DottedPathReplacesScalarInMiddle", func(t *testing.T) {
		fields := map[string]any{"tagAffinities": "oops"}
		applyPatch(fields, &DocumentPatch{Increment: map[string]int64{"tagAffinities.cozy": 1}})

		affinities, ok := fields["tagAffinities"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, int64(1), affinities["cozy"])
	})

	t.Run("NilPatch", func(t *testing.T) {
		fields := map[string]any{"untouched": true}
		applyPatch(fields, nil)
		assert.Equal(t, map[string]any{"untouched": true}, fields)
	})
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, int64(3), toInt64(3))
	assert.Equal(t, int64(3), toInt64(int64(3)))
	assert.Equal(t, int64(3), toInt64(float64(3.7)))
	assert.Equal(t, int64(3), toInt64(int32(3)))
	assert.Equal(t, int64(0), toInt64("not a number"))
	assert.Equal(t, int64(0), toInt64(nil))
}

func TestStore_PatchUserDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	doc, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
		Increment: map[string]int64{"likeCount": 1, "tagAffinities.cozy": 1},
		Append:    map[string][]any{"likedPlaces": {"Tartine"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Fields["likeCount"])

	// A second patch builds on the first.
	doc, err = s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
		Increment: map[string]int64{"likeCount": 1, "tagAffinities.cozy": 1},
		Append:    map[string][]any{"likedPlaces": {"Zuni Cafe"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Fields["likeCount"])
	assert.Equal(t, []any{"Tartine", "Zuni Cafe"}, doc.Fields["likedPlaces"])
	affinities := doc.Fields["tagAffinities"].(map[string]any)
	assert.Equal(t, int64(2), affinities["cozy"])
}

func TestStore_ConcurrentPatchesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
				Increment: map[string]int64{"likeCount": 1},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := s.GetUserDocument(ctx, &FindUserDocument{UID: "user-1"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(writers), doc.Fields["likeCount"])
}

func TestStore_WatchUserDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	updates, cancel := s.WatchUserDocument("user-1")
	defer cancel()

	_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
		Increment: map[string]int64{"likeCount": 1},
	})
	require.NoError(t, err)

	select {
	case fields := <-updates:
		assert.Equal(t, int64(1), fields["likeCount"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document notification")
	}
}

func TestStore_WatcherGetsSnapshotNotLiveMap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	updates, cancel := s.WatchUserDocument("user-1")
	defer cancel()

	_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
		Append: map[string][]any{"likedPlaces": {"Tartine"}},
	})
	require.NoError(t, err)

	snapshot := <-updates
	snapshot["likedPlaces"] = "mutated"

	doc, err := s.GetUserDocument(ctx, &FindUserDocument{UID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Tartine"}, doc.Fields["likedPlaces"])
}

func TestStore_SlowWatcherKeepsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	updates, cancel := s.WatchUserDocument("user-1")
	defer cancel()

	// Overflow the buffer without reading; intermediate snapshots may drop
	// but the newest must survive.
	const writes = 20
	for i := 0; i < writes; i++ {
		_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
			Increment: map[string]int64{"likeCount": 1},
		})
		require.NoError(t, err)
	}

	var last map[string]any
	for {
		select {
		case fields := <-updates:
			last = fields
			continue
		default:
		}
		break
	}
	require.NotNil(t, last)
	assert.Equal(t, int64(writes), last["likeCount"])
}

func TestStore_WatchCancelStopsNotifications(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	updates, cancel := s.WatchUserDocument("user-1")
	cancel()

	_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
		Increment: map[string]int64{"likeCount": 1},
	})
	require.NoError(t, err)

	_, open := <-updates
	assert.False(t, open)
}

func TestStore_WatcherChurnDuringNotifies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, err := s.PatchUserDocument(ctx, "user-1", &DocumentPatch{
				Increment: map[string]int64{"likeCount": 1},
			})
			assert.NoError(t, err)
		}
	}()

	// Cancel must never race a notify into a closed channel.
	for i := 0; i < 500; i++ {
		_, cancel := s.WatchUserDocument("user-1")
		cancel()
	}
	<-done
}

func TestStore_MigrateOnlyWhenUninitialized(t *testing.T) {
	ctx := context.Background()
	driver := newMemoryDriver()
	s := New(driver, &profile.Profile{Mode: "dev"})
	defer s.Close()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	assert.Equal(t, 1, driver.migrateCalls)
}

func TestStore_PurgeExpiredPlaceCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	defer s.Close()

	_, err := s.UpsertPlaceCache(ctx, &UpsertPlaceCache{
		PlaceID:   "old",
		Payload:   []byte("x"),
		UpdatedTs: time.Now().Add(-48 * time.Hour).Unix(),
	})
	require.NoError(t, err)
	_, err = s.UpsertPlaceCache(ctx, &UpsertPlaceCache{
		PlaceID:   "fresh",
		Payload:   []byte("y"),
		UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	deleted, err := s.PurgeExpiredPlaceCache(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entry, err := s.GetPlaceCache(ctx, &FindPlaceCache{PlaceID: "fresh"})
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

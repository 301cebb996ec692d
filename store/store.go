package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/placesense/placesense/internal/profile"
)

// Store provides database access to all raw objects.
// It also owns the per-user document watcher registry: every committed write
// to a user document is pushed to subscribers, which is how the fingerprint
// layer observes behavioral changes without polling.
type Store struct {
	profile *profile.Profile
	driver  Driver

	mu       sync.Mutex
	patchMu  map[string]*sync.Mutex // serializes read-modify-write per user
	watchers map[string][]chan map[string]any
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:   driver,
		profile:  profile,
		patchMu:  make(map[string]*sync.Mutex),
		watchers: make(map[string][]chan map[string]any),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate applies the schema on first start. An already-initialized database
// is left untouched.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check database initialization")
	}
	if initialized {
		return nil
	}
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	for uid, chans := range s.watchers {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.watchers, uid)
	}
	s.mu.Unlock()

	return s.driver.Close()
}

// GetUserDocument returns the raw behavioral document for a user, or nil when
// the user has no document yet.
func (s *Store) GetUserDocument(ctx context.Context, find *FindUserDocument) (*UserDocument, error) {
	return s.driver.GetUserDocument(ctx, find)
}

// UpsertUserDocument replaces the user document wholesale and notifies watchers.
func (s *Store) UpsertUserDocument(ctx context.Context, upsert *UpsertUserDocument) (*UserDocument, error) {
	doc, err := s.driver.UpsertUserDocument(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.notifyWatchers(doc)
	return doc, nil
}

// PatchUserDocument applies a partial update (set / increment / array-append)
// to the user document and notifies watchers with the resulting document.
// The read-modify-write is serialized per user so concurrent interaction
// writes never lose updates.
func (s *Store) PatchUserDocument(ctx context.Context, uid string, patch *DocumentPatch) (*UserDocument, error) {
	mu := s.userPatchMutex(uid)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.driver.GetUserDocument(ctx, &FindUserDocument{UID: uid})
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if doc != nil {
		fields = doc.Fields
	}
	applyPatch(fields, patch)

	updated, err := s.driver.UpsertUserDocument(ctx, &UpsertUserDocument{UID: uid, Fields: fields})
	if err != nil {
		return nil, err
	}
	s.notifyWatchers(updated)
	return updated, nil
}

// WatchUserDocument subscribes to committed writes of one user's document.
// The returned channel receives a snapshot of the document fields after each
// write. Slow consumers only ever lose intermediate snapshots: when the
// buffer is full the oldest pending snapshot is replaced by the newest.
func (s *Store) WatchUserDocument(uid string) (<-chan map[string]any, func()) {
	ch := make(chan map[string]any, 8)

	s.mu.Lock()
	s.watchers[uid] = append(s.watchers[uid], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.watchers[uid]
		for i, c := range chans {
			if c == ch {
				s.watchers[uid] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (s *Store) notifyWatchers(doc *UserDocument) {
	// All sends below are non-blocking, so the lock is held across them; this
	// keeps a concurrent watcher cancel or Close from closing a channel
	// between snapshot and send.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers[doc.UID] {
		snapshot := deepCopyFields(doc.Fields)
		select {
		case ch <- snapshot:
		default:
			// Buffer full: drop the oldest pending snapshot, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
				slog.Warn("dropped user document notification", "uid", doc.UID)
			}
		}
	}
}

func (s *Store) userPatchMutex(uid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.patchMu[uid]
	if !ok {
		mu = &sync.Mutex{}
		s.patchMu[uid] = mu
	}
	return mu
}

// UpsertPlaceCache writes a cached place payload.
func (s *Store) UpsertPlaceCache(ctx context.Context, upsert *UpsertPlaceCache) (*PlaceCacheEntry, error) {
	return s.driver.UpsertPlaceCache(ctx, upsert)
}

// GetPlaceCache returns the cached place payload, or nil when absent.
func (s *Store) GetPlaceCache(ctx context.Context, find *FindPlaceCache) (*PlaceCacheEntry, error) {
	return s.driver.GetPlaceCache(ctx, find)
}

// PurgeExpiredPlaceCache removes place cache rows older than maxAge.
// This is maintenance only: the read path already treats stale rows as absent.
func (s *Store) PurgeExpiredPlaceCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	before := time.Now().Add(-maxAge).Unix()
	return s.driver.DeletePlaceCacheBefore(ctx, before)
}

// applyPatch mutates fields in place. Keys may be dotted paths
// ("tagAffinities.cozy"); intermediate maps are created as needed, matching
// the vendor document stores this layer stands in for.
func applyPatch(fields map[string]any, patch *DocumentPatch) {
	if patch == nil {
		return
	}
	for key, value := range patch.Set {
		parent, leaf := resolvePath(fields, key)
		parent[leaf] = value
	}
	for key, delta := range patch.Increment {
		parent, leaf := resolvePath(fields, key)
		parent[leaf] = toInt64(parent[leaf]) + delta
	}
	for key, items := range patch.Append {
		parent, leaf := resolvePath(fields, key)
		existing, _ := parent[leaf].([]any)
		parent[leaf] = append(existing, items...)
	}
}

// resolvePath walks a dotted path to the parent map of its final segment,
// creating intermediate maps along the way. A non-map value in the middle of
// the path is replaced; partial updates beat stale scalars.
func resolvePath(fields map[string]any, path string) (map[string]any, string) {
	segments := strings.Split(path, ".")
	current := fields
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	return current, segments[len(segments)-1]
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return 0
	}
}

func deepCopyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyFields(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

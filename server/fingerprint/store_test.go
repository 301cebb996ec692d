package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placesense/placesense/store"
)

// scriptedSource serves a fixed initial document and lets tests push document
// updates through the watcher channel.
type scriptedSource struct {
	initial    map[string]any
	updates    chan map[string]any
	watchCalls int
}

func newScriptedSource(initial map[string]any) *scriptedSource {
	return &scriptedSource{
		initial: initial,
		updates: make(chan map[string]any, 8),
	}
}

func (s *scriptedSource) GetUserDocument(_ context.Context, find *store.FindUserDocument) (*store.UserDocument, error) {
	if s.initial == nil {
		return nil, nil
	}
	return &store.UserDocument{UID: find.UID, Fields: s.initial}, nil
}

func (s *scriptedSource) WatchUserDocument(string) (<-chan map[string]any, func()) {
	s.watchCalls++
	return s.updates, func() {}
}

func waitForEvent(t *testing.T, events <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func assertNoEvent(t *testing.T, events <-chan ChangeEvent) {
	t.Helper()
	select {
	case event := <-events:
		t.Fatalf("unexpected change event for %s", event.UserID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStore_InitialLoadEmitsNoEvent(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(3)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Watch(context.Background(), "user-1"))
	assertNoEvent(t, events)
	assert.Equal(t, 3, s.Current("user-1").LikeCount)
}

func TestStore_SignificantChangeEmitsEvent(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(1)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Watch(context.Background(), "user-1"))

	source.updates <- map[string]any{"likeCount": float64(2)}

	event := waitForEvent(t, events)
	assert.Equal(t, "user-1", event.UserID)
	require.NotNil(t, event.Fingerprint)
	assert.Equal(t, 2, event.Fingerprint.LikeCount)
	assert.Equal(t, 2, s.Current("user-1").LikeCount)
}

func TestStore_InsignificantChangeEmitsNoEvent(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(1)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Watch(context.Background(), "user-1"))

	// Mood churn and location moves are not significant.
	source.updates <- map[string]any{
		"likeCount":   float64(1),
		"recentMoods": []any{"adventurous"},
		"currentLocation": map[string]any{
			"latitude":  40.0,
			"longitude": -70.0,
		},
	}
	assertNoEvent(t, events)
}

func TestStore_MissingDocumentFallsBackToDefaults(t *testing.T) {
	source := newScriptedSource(nil)
	s := NewStore(source)
	defer s.Close()

	require.NoError(t, s.Watch(context.Background(), "user-1"))

	fp := s.Current("user-1")
	assert.Equal(t, "user-1", fp.UserID)
	assert.NotEmpty(t, fp.LikedPlaces)
}

func TestStore_DecodeFailureKeepsLastGood(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(5)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Watch(context.Background(), "user-1"))
	require.Equal(t, 5, s.Current("user-1").LikeCount)

	source.updates <- map[string]any{"likeCount": "corrupted"}
	assertNoEvent(t, events)
	// The last good fingerprint survives the bad write.
	assert.Equal(t, 5, s.Current("user-1").LikeCount)
}

func TestStore_DecodeFailureOnFirstLoadUsesDefaults(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": "corrupted"})
	s := NewStore(source)
	defer s.Close()

	require.NoError(t, s.Watch(context.Background(), "user-1"))

	fp := s.Current("user-1")
	assert.Equal(t, "user-1", fp.UserID)
	assert.Zero(t, fp.LikeCount)
	assert.NotEmpty(t, fp.LikedPlaces)
}

func TestStore_CurrentWithoutWatch(t *testing.T) {
	s := NewStore(newScriptedSource(nil))
	defer s.Close()

	fp := s.Current("stranger")
	require.NotNil(t, fp)
	assert.Equal(t, "stranger", fp.UserID)
}

func TestStore_WatchIsIdempotentPerUser(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(1)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Watch(context.Background(), "user-1"))
	require.NoError(t, s.Watch(context.Background(), "user-1"))
	assert.Equal(t, 1, source.watchCalls)

	// One update produces exactly one event, not one per Watch call.
	source.updates <- map[string]any{"likeCount": float64(2)}
	waitForEvent(t, events)
	assertNoEvent(t, events)
}

func TestStore_SubscribeChurnDuringPublishes(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(0)})
	s := NewStore(source)
	defer s.Close()
	require.NoError(t, s.Watch(context.Background(), "user-1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 200; i++ {
			source.updates <- map[string]any{"likeCount": float64(i)}
		}
	}()

	// Cancel must never race a publish into a closed channel.
	for i := 0; i < 500; i++ {
		_, cancel := s.Subscribe()
		cancel()
	}
	<-done
}

func TestStore_SubscribeCancel(t *testing.T) {
	source := newScriptedSource(map[string]any{"likeCount": float64(1)})
	s := NewStore(source)
	defer s.Close()

	events, cancel := s.Subscribe()
	require.NoError(t, s.Watch(context.Background(), "user-1"))
	cancel()

	// The channel closes on cancel; a significant update must not panic.
	source.updates <- map[string]any{"likeCount": float64(2)}
	require.Eventually(t, func() bool {
		return s.Current("user-1").LikeCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, open := <-events
	assert.False(t, open)
}

package fingerprint

import (
	"context"
	"log/slog"
	"sync"

	"github.com/placesense/placesense/store"
)

// ChangeEvent is published when a user's fingerprint changes significantly.
type ChangeEvent struct {
	UserID      string
	Fingerprint *BehavioralFingerprint
}

// DocumentSource is the slice of the document store the fingerprint layer
// consumes. *store.Store satisfies it.
type DocumentSource interface {
	GetUserDocument(ctx context.Context, find *store.FindUserDocument) (*store.UserDocument, error)
	WatchUserDocument(uid string) (<-chan map[string]any, func())
}

// Store holds the live fingerprint per user and publishes change events.
// It never calls consumers directly: subscribers pull events from a channel,
// which keeps the dependency direction visible and the store testable alone.
type Store struct {
	source DocumentSource

	mu      sync.RWMutex
	current map[string]*BehavioralFingerprint
	loaded  map[string]bool

	subMu       sync.Mutex
	subscribers []chan ChangeEvent
	watching    map[string]bool
	cancels     []func()
}

// NewStore creates a fingerprint store on top of a document source.
func NewStore(source DocumentSource) *Store {
	return &Store{
		source:   source,
		current:  make(map[string]*BehavioralFingerprint),
		loaded:   make(map[string]bool),
		watching: make(map[string]bool),
	}
}

// Watch starts tracking a user's document: it performs the initial load, then
// consumes the document watcher until ctx is done or the store is closed.
// The initial load never emits a change event. Watching an already-watched
// user is a no-op, so callers can invoke this on every API touch of a uid.
func (s *Store) Watch(ctx context.Context, uid string) error {
	s.subMu.Lock()
	if s.watching[uid] {
		s.subMu.Unlock()
		return nil
	}
	s.watching[uid] = true
	s.subMu.Unlock()

	doc, err := s.source.GetUserDocument(ctx, &store.FindUserDocument{UID: uid})
	if err != nil {
		slog.Warn("initial fingerprint document load failed", "uid", uid, "error", err)
	}
	var fields map[string]any
	if doc != nil {
		fields = doc.Fields
	}
	s.handleDocument(uid, fields)

	updates, cancel := s.source.WatchUserDocument(uid)

	s.subMu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.subMu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case fields, ok := <-updates:
				if !ok {
					return
				}
				s.handleDocument(uid, fields)
			}
		}
	}()
	return nil
}

// Current returns the live fingerprint for a user. Never nil once Watch has
// been called for that user.
func (s *Store) Current(uid string) *BehavioralFingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fp, ok := s.current[uid]; ok {
		return fp
	}
	return Default(uid)
}

// Subscribe returns a channel of change events and a cancel function.
func (s *Store) Subscribe() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 16)

	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Close detaches all document watchers.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// handleDocument rebuilds the fingerprint from a raw document snapshot.
// Decode failure never crashes the pipeline: the first load falls back to the
// default-seeded fingerprint, later loads keep the last good one.
func (s *Store) handleDocument(uid string, fields map[string]any) {
	var next *BehavioralFingerprint
	if fields == nil {
		next = Default(uid)
	} else {
		decoded, err := Decode(uid, fields)
		if err != nil {
			s.mu.RLock()
			_, hadPrevious := s.current[uid]
			s.mu.RUnlock()
			if hadPrevious {
				slog.Warn("fingerprint decode failed, keeping last good fingerprint", "uid", uid, "error", err)
				return
			}
			slog.Warn("fingerprint decode failed on first load, using defaults", "uid", uid, "error", err)
			next = Default(uid)
		} else {
			next = decoded
		}
	}

	s.mu.Lock()
	prev := s.current[uid]
	firstLoad := !s.loaded[uid]
	s.current[uid] = next
	s.loaded[uid] = true
	s.mu.Unlock()

	if firstLoad {
		return
	}
	if !significantChange(prev, next) {
		return
	}
	s.publish(ChangeEvent{UserID: uid, Fingerprint: next})
}

func (s *Store) publish(event ChangeEvent) {
	// The sends are non-blocking, so the lock is held across them; this keeps
	// a concurrent Subscribe cancel from closing a channel mid-send.
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			slog.Warn("dropped fingerprint change event", "uid", event.UserID)
		}
	}
}

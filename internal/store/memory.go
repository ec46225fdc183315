package store

import (
	"context"
	"sync"
)

// MemoryStore is a pure in-memory Store. Sharing one MemoryStore between two
// services simulates two replicas coordinating through shared storage, which
// is how the service tests exercise the sync protocol without Redis or a
// filesystem.
type MemoryStore struct {
	mu       sync.Mutex
	snap     Snapshot
	hasState bool
	watchers map[int]chan Snapshot
	nextID   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: make(map[int]chan Snapshot)}
}

// Load returns the last saved snapshot, or the default when nothing has been
// saved yet.
func (s *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasState {
		return DefaultSnapshot(), nil
	}
	return s.snap, nil
}

// Save stores the snapshot and delivers it to every active watcher,
// including the saver's own: echo suppression is the sync guard's job, and
// the tests rely on echoes actually arriving.
func (s *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	s.snap = snap
	s.hasState = true
	watchers := make([]chan Snapshot, 0, len(s.watchers))
	for _, ch := range s.watchers {
		watchers = append(watchers, ch)
	}
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- snap:
		default:
			// Slow watcher: drop, like Redis Pub/Sub would.
		}
	}
	return nil
}

// Watch subscribes to future saves.
func (s *MemoryStore) Watch(ctx context.Context) (*Subscription, error) {
	events := make(chan Snapshot, 10)
	errorsChan := make(chan error, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = events
	s.mu.Unlock()

	subCtx, cancelFunc := context.WithCancel(ctx)
	out := make(chan Snapshot, 10)
	go func() {
		defer close(out)
		defer close(errorsChan)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-subCtx.Done():
				return
			case snap := <-events:
				select {
				case out <- snap:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return newSubscription(out, errorsChan, cancelFunc), nil
}

// Package store defines the storage port the board service persists through,
// plus the three implementations shipped with corkboard: a Redis-backed store
// with pub/sub change notification, a shared-file store with polling watch,
// and a pure in-memory store for tests.
//
// The service only depends on the Store interface. Implementations fail soft
// on load: missing or malformed state yields a valid default snapshot, never
// a format error. I/O failures still propagate; the service's in-memory state
// stays authoritative regardless of persistence outcome.
package store

import (
	"context"
	"sync"

	"github.com/duskmoor/corkboard/pkg/board"
)

// Snapshot is the unit of persistence: the plain board state plus the
// replicated document's exported update blob. The blob is what other replicas
// merge; the plain board is kept alongside for fail-soft loading and human
// inspection. Origin names the replica that saved, so watchers can drop their
// own echoes cheaply.
type Snapshot struct {
	Board   board.Board `json:"board"`
	Update  []byte      `json:"update_b64,omitempty"`
	Origin  string      `json:"origin,omitempty"`
	SavedMs int64       `json:"saved_at_ms,omitempty"`
}

// Store is the storage port. Save completion signals durability, not
// observability by other replicas; Watch deliveries may be stale, duplicated
// or out of order relative to local writes - the sync guard and CRDT merge
// are responsible for correctness, not the transport.
type Store interface {
	// Load returns the last saved snapshot, or a valid default when no
	// usable prior state exists.
	Load(ctx context.Context) (Snapshot, error)

	// Save persists a snapshot and makes it eventually observable by other
	// replicas' Watch.
	Save(ctx context.Context, snap Snapshot) error

	// Watch subscribes to externally observed state changes. Callers must
	// Close the subscription when done.
	Watch(ctx context.Context) (*Subscription, error)
}

// DefaultSnapshot returns the snapshot used when no prior state exists.
func DefaultSnapshot() Snapshot {
	return Snapshot{Board: board.DefaultBoard()}
}

// Subscription is an active watch on a store. Snapshots arrive on Events();
// non-fatal delivery problems (malformed payloads, transient read errors)
// arrive on Errors() and the subscription keeps running.
type Subscription struct {
	events <-chan Snapshot
	errors <-chan error
	cancel func()
	once   sync.Once
}

func newSubscription(events <-chan Snapshot, errors <-chan error, cancel func()) *Subscription {
	return &Subscription{events: events, errors: errors, cancel: cancel}
}

// Events returns the channel of snapshot deliveries. Closed when the
// subscription closes or its context is cancelled.
func (s *Subscription) Events() <-chan Snapshot {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times. Implements
// io.Closer.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskmoor/corkboard/internal/store"
	"github.com/duskmoor/corkboard/pkg/board"
	"github.com/duskmoor/corkboard/pkg/document"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// startService builds a service on the given store and starts it.
func startService(t *testing.T, st store.Store, replicaID string) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := New(st, Options{ReplicaID: replicaID, Logger: quietLogger()})
	require.NoError(t, svc.Start(ctx))
	return svc
}

func backlogID(t *testing.T, svc *Service) string {
	t.Helper()
	col, ok := svc.Board().ColumnByName("backlog")
	require.True(t, ok)
	return col.ID
}

func TestAddListRemove(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	backlog := backlogID(t, svc)

	rec, err := svc.AddRecord(ctx, backlog, "editor", "/src/editor")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Order)

	rec2, err := svc.AddRecord(ctx, backlog, "docs", "/src/docs")
	require.NoError(t, err)
	assert.Equal(t, 1, rec2.Order, "new records append at the end of the column")

	require.NoError(t, svc.RemoveRecord(ctx, rec.ID))
	_, ok := svc.Board().RecordByID(rec.ID)
	assert.False(t, ok)
}

func TestAddRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")

	_, err := svc.AddRecord(ctx, backlogID(t, svc), "", "/src/x")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Errors)
	assert.Empty(t, svc.Board().Windows, "rejected command must not mutate state")
}

func TestMoveRecordAcrossColumns(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	backlog := backlogID(t, svc)
	active, ok := svc.Board().ColumnByName("active")
	require.True(t, ok)

	rec, err := svc.AddRecord(ctx, backlog, "editor", "/src/editor")
	require.NoError(t, err)

	require.NoError(t, svc.MoveRecord(ctx, rec.ID, active.ID, 0))
	got, ok := svc.Board().RecordByID(rec.ID)
	require.True(t, ok)
	assert.Equal(t, active.ID, got.ColumnID)
	assert.Equal(t, 0, got.Order)

	// Missing id is a silent no-op.
	require.NoError(t, svc.MoveRecord(ctx, "no-such-id", active.ID, 0))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	backlog := backlogID(t, svc)

	rec, err := svc.AddRecord(ctx, backlog, "editor", "/src/editor")
	require.NoError(t, err)

	name := "renamed"
	require.NoError(t, svc.UpdateRecord(ctx, rec.ID, board.FieldPatch{Name: &name}))

	// Undo the rename restores the original name.
	done, err := svc.Undo(ctx)
	require.NoError(t, err)
	require.True(t, done)
	got, _ := svc.Board().RecordByID(rec.ID)
	assert.Equal(t, "editor", got.Name)

	// Redo applies it again.
	done, err = svc.Redo(ctx)
	require.NoError(t, err)
	require.True(t, done)
	got, _ = svc.Board().RecordByID(rec.ID)
	assert.Equal(t, "renamed", got.Name)

	// Undo twice removes the record entirely (rename, then add).
	_, err = svc.Undo(ctx)
	require.NoError(t, err)
	_, err = svc.Undo(ctx)
	require.NoError(t, err)
	_, ok := svc.Board().RecordByID(rec.ID)
	assert.False(t, ok)

	// Nothing left to undo.
	done, err = svc.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestUndoRemovalRestoresFullRecord(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	backlog := backlogID(t, svc)

	rec, err := svc.AddRecord(ctx, backlog, "editor", "/src/editor")
	require.NoError(t, err)
	branch := "main"
	require.NoError(t, svc.UpdateRecord(ctx, rec.ID, board.FieldPatch{Branch: &branch}))
	require.NoError(t, svc.SetOpen(ctx, rec.ID, true))

	require.NoError(t, svc.RemoveRecord(ctx, rec.ID))

	done, err := svc.Undo(ctx)
	require.NoError(t, err)
	require.True(t, done)

	got, ok := svc.Board().RecordByID(rec.ID)
	require.True(t, ok, "undoing a removal restores the record")
	assert.Equal(t, "main", got.Branch)
	assert.True(t, got.IsOpen)
}

func TestUndoOfStatusChange(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")

	rec, err := svc.AddRecord(ctx, backlogID(t, svc), "editor", "/src/editor")
	require.NoError(t, err)
	require.NoError(t, svc.SetOpen(ctx, rec.ID, true))

	done, err := svc.Undo(ctx)
	require.NoError(t, err)
	require.True(t, done)
	got, _ := svc.Board().RecordByID(rec.ID)
	assert.False(t, got.IsOpen)
}

// The staleness guard on plain snapshots: equal timestamps are echoes,
// strictly newer ones are adopted with exactly one notification.
func TestStalenessGuardOnPlainSnapshots(t *testing.T) {
	svc := startService(t, store.NewMemoryStore(), "replica-a")

	local := svc.Board()
	notifications := 0
	svc.OnStateChange(func(board.Board) { notifications++ })

	echo := local
	svc.handleExternal(store.Snapshot{Board: echo, Origin: "replica-b"})
	assert.Equal(t, 0, notifications, "equal timestamp is discarded")
	assert.Equal(t, local.LastModifiedMs, svc.Board().LastModifiedMs)

	newer := local
	newer.LastModifiedMs = local.LastModifiedMs + 50
	svc.handleExternal(store.Snapshot{Board: newer, Origin: "replica-b"})
	assert.Equal(t, 1, notifications, "strictly newer snapshot adopted, observers notified exactly once")
	assert.Equal(t, newer.LastModifiedMs, svc.Board().LastModifiedMs)
}

func TestSelfEchoIsDropped(t *testing.T) {
	svc := startService(t, store.NewMemoryStore(), "replica-a")

	notifications := 0
	svc.OnStateChange(func(board.Board) { notifications++ })

	newer := svc.Board()
	newer.LastModifiedMs += 100
	svc.handleExternal(store.Snapshot{Board: newer, Origin: "replica-a"})
	assert.Equal(t, 0, notifications)
}

func TestTwoReplicasConvergeThroughSharedStore(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	a := startService(t, shared, "replica-a")
	b := startService(t, shared, "replica-b")

	recA, err := a.AddRecord(ctx, backlogID(t, a), "from-a", "/src/a")
	require.NoError(t, err)

	// B observes A's record, then adds its own.
	require.Eventually(t, func() bool {
		_, ok := b.Board().RecordByID(recA.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	recB, err := b.AddRecord(ctx, backlogID(t, b), "from-b", "/src/b")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := a.Board().RecordByID(recB.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Both replicas hold both records.
	for _, svc := range []*Service{a, b} {
		_, ok1 := svc.Board().RecordByID(recA.ID)
		_, ok2 := svc.Board().RecordByID(recB.ID)
		assert.True(t, ok1 && ok2)
	}
}

// failingStore wraps a MemoryStore but refuses saves.
type failingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	failing bool
}

func (f *failingStore) Save(ctx context.Context, snap store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, snap)
}

func (f *failingStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func TestFailedSaveKeepsInMemoryState(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{MemoryStore: store.NewMemoryStore()}
	svc := startService(t, fs, "replica-a")
	fs.setFailing(true)

	rec, err := svc.AddRecord(ctx, backlogID(t, svc), "editor", "/src/editor")
	assert.Error(t, err, "storage failure surfaces to the caller")

	// The local snapshot remains the source of truth.
	got, ok := svc.Board().RecordByID(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "editor", got.Name)

	// Recovery: the next successful operation persists everything.
	fs.setFailing(false)
	require.NoError(t, svc.SetOpen(ctx, rec.ID, true))
	snap, err := fs.Load(ctx)
	require.NoError(t, err)
	_, ok = snap.Board.RecordByID(rec.ID)
	assert.True(t, ok)
}

func TestOnStateChangeUnsubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")

	calls := 0
	unsub := svc.OnStateChange(func(board.Board) { calls++ })

	_, err := svc.AddRecord(ctx, backlogID(t, svc), "one", "/src/one")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsub()
	unsub()
	_, err = svc.AddRecord(ctx, backlogID(t, svc), "two", "/src/two")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAddAfterRemoveKeepsOrdersUnique(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	backlog := backlogID(t, svc)

	var recs []board.Record
	for _, name := range []string{"w0", "w1", "w2"} {
		rec, err := svc.AddRecord(ctx, backlog, name, "/src/"+name)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, svc.RemoveRecord(ctx, recs[1].ID))

	// The column now ranks {0, 2}; the next add must not reuse rank 2.
	w3, err := svc.AddRecord(ctx, backlog, "w3", "/src/w3")
	require.NoError(t, err)
	assert.Equal(t, 3, w3.Order)

	seen := map[int]string{}
	for _, w := range svc.Board().InColumn(backlog) {
		if prev, dup := seen[w.Order]; dup {
			t.Fatalf("order %d shared by %q and %q", w.Order, prev, w.Name)
		}
		seen[w.Order] = w.Name
	}
}

func TestSavedSnapshotBlobMatchesBoard(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	svc := startService(t, shared, "replica-a")
	backlog := backlogID(t, svc)

	rec, err := svc.AddRecord(ctx, backlog, "editor", "/src/editor")
	require.NoError(t, err)
	require.NoError(t, svc.SetOpen(ctx, rec.ID, true))

	snap, err := shared.Load(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Update)

	// The blob saved beside the plain board must describe the same state.
	peer := document.New("replica-reader")
	_, err = peer.ApplyUpdate(snap.Update)
	require.NoError(t, err)
	extracted := peer.ExtractState()

	require.Len(t, extracted.Windows, len(snap.Board.Windows))
	for _, w := range snap.Board.Windows {
		got, ok := extracted.RecordByID(w.ID)
		require.True(t, ok)
		assert.Equal(t, w.Order, got.Order)
		assert.Equal(t, w.IsOpen, got.IsOpen)
	}
}

func TestConcurrentLocalEditsAndMergesConverge(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	a := startService(t, shared, "replica-a")
	b := startService(t, shared, "replica-b")

	// Both replicas add records while merges from the other side land
	// between and during their own edits.
	var wg sync.WaitGroup
	for _, side := range []struct {
		svc   *Service
		names []string
	}{
		{a, []string{"a0", "a1", "a2"}},
		{b, []string{"b0", "b1", "b2"}},
	} {
		wg.Add(1)
		go func(svc *Service, names []string) {
			defer wg.Done()
			for _, name := range names {
				_, err := svc.AddRecord(ctx, backlogID(t, svc), name, "/src/"+name)
				assert.NoError(t, err)
			}
		}(side.svc, side.names)
	}
	wg.Wait()

	names := func(svc *Service) map[string]bool {
		out := map[string]bool{}
		for _, w := range svc.Board().Windows {
			out[w.Name] = true
		}
		return out
	}
	require.Eventually(t, func() bool {
		return len(names(a)) == 6 && len(names(b)) == 6
	}, 2*time.Second, 10*time.Millisecond, "no local or merged record may be lost")
	assert.Equal(t, names(a), names(b))
}

func TestMalformedExternalUpdateIsRejected(t *testing.T) {
	svc := startService(t, store.NewMemoryStore(), "replica-a")
	before := svc.Board()

	svc.handleExternal(store.Snapshot{
		Board:  before,
		Update: []byte("{corrupt"),
		Origin: "replica-b",
	})
	assert.Equal(t, before, svc.Board())
}

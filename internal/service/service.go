// Package service owns the authoritative in-memory board of one replica and
// wires the pure pieces together: board transforms, the event history, the
// replicated document and the storage port.
//
// Every command follows the same sequence: transform the snapshot, record the
// operation in the history, fold the result into the replicated document,
// persist, then notify observers. Externally observed snapshots arriving via
// the store's watch are merged through the document and adopted only when the
// staleness guard says they are genuinely newer than local state.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duskmoor/corkboard/internal/history"
	"github.com/duskmoor/corkboard/internal/store"
	"github.com/duskmoor/corkboard/pkg/board"
	"github.com/duskmoor/corkboard/pkg/document"
)

// ValidationError reports a rejected command as the full list of field
// failures.
type ValidationError struct {
	Errors []board.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Options configures a Service.
type Options struct {
	// ReplicaID uniquely identifies this process among replicas. Generated
	// when empty.
	ReplicaID string

	// HistoryLimit bounds the undo log. Defaults to history.DefaultLimit.
	HistoryLimit int

	// Logger receives validation warnings and sync decisions. Defaults to
	// the standard logrus logger.
	Logger *logrus.Logger
}

// Service is one replica's board service. Safe for concurrent use.
type Service struct {
	st  store.Store
	doc *document.Doc
	log *logrus.Entry

	mu        sync.Mutex
	board     board.Board
	hist      *history.Log
	observers map[int]func(board.Board)
	nextObs   int
}

// New creates a service on top of the given store. Call Start to load state
// and begin watching for external changes.
func New(st store.Store, opts Options) *Service {
	if opts.ReplicaID == "" {
		opts.ReplicaID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		st:        st,
		doc:       document.New(opts.ReplicaID),
		log:       logger.WithField("replica", opts.ReplicaID),
		hist:      history.NewLog(opts.HistoryLimit),
		observers: make(map[int]func(board.Board)),
	}
}

// ReplicaID returns the id this service stamps its writes with.
func (s *Service) ReplicaID() string {
	return s.doc.ReplicaID()
}

// Start loads persisted state and begins consuming the store's watch until
// ctx is cancelled. Malformed prior state has already been defaulted by the
// store; validation problems in loaded state are warned about and tolerated.
func (s *Service) Start(ctx context.Context) error {
	snap, err := s.st.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load board state: %w", err)
	}
	s.warnOnValidation(snap.Board)

	if len(snap.Update) > 0 {
		if _, err := s.doc.ApplyUpdate(snap.Update); err != nil {
			s.log.WithError(err).Warn("ignoring unreadable update blob in stored state")
			s.doc.LoadState(snap.Board)
		}
	} else {
		s.doc.LoadState(snap.Board)
	}

	s.mu.Lock()
	s.board = s.doc.ExtractState()
	s.mu.Unlock()

	sub, err := s.st.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch board state: %w", err)
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Events():
				if !ok {
					return
				}
				s.handleExternal(snap)
			case err, ok := <-sub.Errors():
				if !ok {
					return
				}
				s.log.WithError(err).Warn("watch delivery problem")
			}
		}
	}()
	return nil
}

// Board returns the current authoritative snapshot.
func (s *Service) Board() board.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

// OnStateChange registers an observer fired after every successful local
// mutation and after every adopted external update. The returned unsubscribe
// function is idempotent and safe to call from within the callback.
func (s *Service) OnStateChange(fn func(board.Board)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// AddRecord creates a record at the end of the given column.
func (s *Service) AddRecord(ctx context.Context, columnID, name, path string) (board.Record, error) {
	s.mu.Lock()
	order := s.board.NextOrder(columnID)
	rec := board.NewRecord(columnID, order, name, path)
	if errs := rec.Validate(); len(errs) > 0 {
		s.mu.Unlock()
		return board.Record{}, &ValidationError{Errors: errs}
	}
	s.board = board.Upsert(s.board, rec)
	s.hist.Record(history.Event{Kind: history.KindRecordAdded, RecordID: rec.ID, Record: rec})
	s.doc.UpsertRecord(rec)
	s.mu.Unlock()

	return rec, s.persistAndNotify(ctx)
}

// RemoveRecord deletes a record. The history event keeps a snapshot of the
// removed record so the removal can be undone. Missing ids are silent no-ops.
func (s *Service) RemoveRecord(ctx context.Context, recordID string) error {
	s.mu.Lock()
	rec, ok := s.board.RecordByID(recordID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.board = board.Remove(s.board, recordID)
	s.hist.Record(history.Event{Kind: history.KindRecordRemoved, RecordID: recordID, Record: rec})
	s.doc.DeleteRecord(recordID)
	s.mu.Unlock()

	return s.persistAndNotify(ctx)
}

// MoveRecord places a record at (toColumnID, toOrder). Missing ids are silent
// no-ops.
func (s *Service) MoveRecord(ctx context.Context, recordID, toColumnID string, toOrder int) error {
	s.mu.Lock()
	prev, ok := s.board.RecordByID(recordID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.board = board.Move(s.board, recordID, toColumnID, toOrder)
	moved, _ := s.board.RecordByID(recordID)
	s.hist.Record(history.Event{
		Kind:         history.KindRecordMoved,
		RecordID:     recordID,
		FromColumnID: prev.ColumnID,
		FromOrder:    prev.Order,
		ToColumnID:   moved.ColumnID,
		ToOrder:      moved.Order,
	})
	s.foldBoardLocked()
	s.mu.Unlock()

	return s.persistAndNotify(ctx)
}

// UpdateRecord merges a field patch into a record. Missing ids are silent
// no-ops.
func (s *Service) UpdateRecord(ctx context.Context, recordID string, patch board.FieldPatch) error {
	s.mu.Lock()
	prev, ok := s.board.RecordByID(recordID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.board = board.UpdateFields(s.board, recordID, patch)
	s.hist.Record(history.Event{
		Kind:      history.KindRecordUpdated,
		RecordID:  recordID,
		Patch:     patch,
		PrevPatch: inversePatch(prev, patch),
	})
	rec, _ := s.board.RecordByID(recordID)
	s.doc.UpsertRecord(rec)
	s.mu.Unlock()

	return s.persistAndNotify(ctx)
}

// SetOpen flips a record's open status. Missing ids are silent no-ops.
func (s *Service) SetOpen(ctx context.Context, recordID string, isOpen bool) error {
	s.mu.Lock()
	prev, ok := s.board.RecordByID(recordID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.board = board.UpdateStatus(s.board, recordID, isOpen)
	s.hist.Record(history.Event{
		Kind:       history.KindRecordUpdated,
		RecordID:   recordID,
		StatusOnly: true,
		IsOpen:     isOpen,
		WasOpen:    prev.IsOpen,
	})
	rec, _ := s.board.RecordByID(recordID)
	s.doc.UpsertRecord(rec)
	s.mu.Unlock()

	return s.persistAndNotify(ctx)
}

// CanUndo reports whether an operation is available to undo.
func (s *Service) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanUndo()
}

// CanRedo reports whether an operation is available to redo.
func (s *Service) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanRedo()
}

// Undo reverses the most recent local operation. Returns false when the
// history is empty.
func (s *Service) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	e, ok := s.hist.Undo()
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.applyInverseLocked(e)
	s.foldBoardLocked()
	s.mu.Unlock()

	return true, s.persistAndNotify(ctx)
}

// Redo re-applies the most recently undone operation. Returns false when
// there is nothing to redo.
func (s *Service) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	e, ok := s.hist.Redo()
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.applyForwardLocked(e)
	s.foldBoardLocked()
	s.mu.Unlock()

	return true, s.persistAndNotify(ctx)
}

// applyInverseLocked maps an event to its inverse board transform. Caller
// holds s.mu.
func (s *Service) applyInverseLocked(e history.Event) {
	switch e.Kind {
	case history.KindRecordAdded:
		s.board = board.Remove(s.board, e.RecordID)
	case history.KindRecordRemoved:
		s.board = board.Upsert(s.board, e.Record)
	case history.KindRecordMoved:
		s.board = board.Move(s.board, e.RecordID, e.FromColumnID, e.FromOrder)
	case history.KindRecordUpdated:
		if e.StatusOnly {
			s.board = board.UpdateStatus(s.board, e.RecordID, e.WasOpen)
		} else {
			s.board = board.UpdateFields(s.board, e.RecordID, e.PrevPatch)
		}
	}
}

// applyForwardLocked re-applies an event's forward transform. Caller holds
// s.mu.
func (s *Service) applyForwardLocked(e history.Event) {
	switch e.Kind {
	case history.KindRecordAdded:
		s.board = board.Upsert(s.board, e.Record)
	case history.KindRecordRemoved:
		s.board = board.Remove(s.board, e.RecordID)
	case history.KindRecordMoved:
		s.board = board.Move(s.board, e.RecordID, e.ToColumnID, e.ToOrder)
	case history.KindRecordUpdated:
		if e.StatusOnly {
			s.board = board.UpdateStatus(s.board, e.RecordID, e.IsOpen)
		} else {
			s.board = board.UpdateFields(s.board, e.RecordID, e.Patch)
		}
	}
}

// foldBoardLocked pushes the whole authoritative snapshot into the replicated
// document. Used after multi-record rewrites (moves, undo, redo) where
// single-key upserts would miss the order repairs on neighbouring records.
// Caller holds s.mu.
func (s *Service) foldBoardLocked() {
	s.doc.LoadState(s.board)
}

// persistAndNotify saves the current snapshot and then notifies observers.
// A failed save does not corrupt in-memory state: the local snapshot remains
// the source of truth, observers still run, and the error surfaces to the
// caller of the triggering operation.
func (s *Service) persistAndNotify(ctx context.Context) error {
	// Board and blob are captured under the same lock so the saved snapshot
	// is internally consistent even while other operations land.
	s.mu.Lock()
	snap := store.Snapshot{
		Board:   s.board,
		Origin:  s.doc.ReplicaID(),
		SavedMs: time.Now().UnixMilli(),
	}
	update, err := s.doc.Update()
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Warn("failed to export document update; saving plain board only")
	} else {
		snap.Update = update
	}

	saveErr := s.st.Save(ctx, snap)
	if saveErr != nil {
		s.log.WithError(saveErr).Error("failed to persist board state")
	}
	s.notify(snap.Board)
	if saveErr != nil {
		return fmt.Errorf("failed to persist board state: %w", saveErr)
	}
	return nil
}

// handleExternal runs the sync protocol on an externally observed snapshot.
// Own echoes are dropped first. Snapshots carrying an update blob are merged
// through the document, which is always safe; the merged state is adopted
// whenever the merge actually changed the document, regardless of timestamps,
// because the CRDT merge subsumes the scalar guard. Plain snapshots without a
// blob fall back to the staleness guard: adopt only when strictly newer than
// the local snapshot.
func (s *Service) handleExternal(snap store.Snapshot) {
	if snap.Origin != "" && snap.Origin == s.doc.ReplicaID() {
		s.log.Debug("discarding self-echo")
		return
	}

	var merged board.Board
	if len(snap.Update) > 0 {
		changed, err := s.doc.ApplyUpdate(snap.Update)
		if err != nil {
			s.log.WithError(err).Warn("rejecting malformed external update")
			return
		}
		if !changed {
			s.log.Debug("discarding redundant external update")
			return
		}
		// Extract under the lock so a local mutation racing the merge is
		// part of the adopted snapshot, not transiently dropped from it.
		s.mu.Lock()
		merged = s.doc.ExtractState()
	} else {
		merged = snap.Board
		s.mu.Lock()
		if merged.LastModifiedMs <= s.board.LastModifiedMs {
			local := s.board.LastModifiedMs
			s.mu.Unlock()
			s.log.WithFields(logrus.Fields{
				"external_ms": merged.LastModifiedMs,
				"local_ms":    local,
			}).Debug("discarding stale external snapshot")
			return
		}
		// Plain adoption without a blob: keep the document in step.
		s.doc.LoadState(merged)
	}

	s.warnOnValidation(merged)
	s.board = merged
	s.mu.Unlock()

	s.notify(merged)
}

// notify calls every registered observer with the adopted snapshot.
func (s *Service) notify(b board.Board) {
	s.mu.Lock()
	fns := make([]func(board.Board), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(b)
	}
}

// warnOnValidation logs each field failure; loading stays available over
// strict.
func (s *Service) warnOnValidation(b board.Board) {
	for _, fe := range b.Validate() {
		s.log.WithFields(logrus.Fields{
			"field": fe.Path,
		}).Warnf("board validation: %s", fe.Message)
	}
}

// inversePatch captures the prior values of exactly the fields the patch
// touches, so undo restores only what the update changed.
func inversePatch(prev board.Record, patch board.FieldPatch) board.FieldPatch {
	var inv board.FieldPatch
	if patch.Name != nil {
		name := prev.Name
		inv.Name = &name
	}
	if patch.Path != nil {
		path := prev.Path
		inv.Path = &path
	}
	if patch.Branch != nil {
		branch := prev.Branch
		inv.Branch = &branch
	}
	return inv
}

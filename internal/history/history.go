// Package history implements the linear undo/redo log of board operations.
//
// The log is a pure in-memory structure: it holds no board state and applies
// no transforms itself. The owning service maps each event to a forward or
// inverse board operation when undoing or redoing. Events never leave the
// process and are never shared across replicas.
package history

import "github.com/duskmoor/corkboard/pkg/board"

// DefaultLimit is the number of events retained when no explicit limit is
// configured.
const DefaultLimit = 100

// Kind tags an event variant.
type Kind string

const (
	// KindRecordAdded marks the creation of a record.
	KindRecordAdded Kind = "record_added"

	// KindRecordRemoved marks the removal of a record. The event carries a
	// snapshot of the removed record so undo can restore it fully.
	KindRecordRemoved Kind = "record_removed"

	// KindRecordMoved marks a placement change.
	KindRecordMoved Kind = "record_moved"

	// KindRecordUpdated marks a field or status change.
	KindRecordUpdated Kind = "record_updated"
)

// Event is a closed tagged variant over the four operation kinds. Only the
// fields relevant to the tagged kind are populated.
type Event struct {
	Kind     Kind
	RecordID string

	// Added and Removed snapshots. Removed carries the full prior value so
	// undoing a removal can re-create the record.
	Record board.Record

	// Move placement, both sides.
	FromColumnID string
	FromOrder    int
	ToColumnID   string
	ToOrder      int

	// Update change-sets. Prev holds the values being replaced so undo can
	// put them back.
	Patch     board.FieldPatch
	PrevPatch board.FieldPatch

	// Status flip, with the prior value.
	IsOpen     bool
	WasOpen    bool
	StatusOnly bool
}

// Log is a bounded, position-addressable sequence of events with a cursor.
// Position -1 means "before the first event". Not safe for concurrent use;
// the owning service serialises access.
type Log struct {
	events []Event
	pos    int
	limit  int
}

// NewLog creates a log retaining at most limit events. Non-positive limits
// fall back to DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{pos: -1, limit: limit}
}

// Record appends an event at the cursor, discarding any redo tail beyond it,
// and evicts the oldest events when the log exceeds its limit.
func (l *Log) Record(e Event) {
	l.events = append(l.events[:l.pos+1], e)
	l.pos++
	if len(l.events) > l.limit {
		evict := len(l.events) - l.limit
		l.events = append([]Event(nil), l.events[evict:]...)
		l.pos -= evict
	}
}

// CanUndo reports whether an event is available behind the cursor.
func (l *Log) CanUndo() bool {
	return l.pos >= 0
}

// CanRedo reports whether an event is available ahead of the cursor.
func (l *Log) CanRedo() bool {
	return l.pos < len(l.events)-1
}

// Undo returns the event at the cursor and steps the cursor back. The caller
// applies the inverse transform. Returns false when there is nothing to undo.
func (l *Log) Undo() (Event, bool) {
	if !l.CanUndo() {
		return Event{}, false
	}
	e := l.events[l.pos]
	l.pos--
	return e, true
}

// Redo steps the cursor forward and returns the event now under it. The
// caller re-applies the forward transform. Returns false when there is
// nothing to redo.
func (l *Log) Redo() (Event, bool) {
	if !l.CanRedo() {
		return Event{}, false
	}
	l.pos++
	return l.events[l.pos], true
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	return len(l.events)
}

package board

import "sort"

// Pure transforms over Board snapshots.
//
// Every function takes a snapshot and returns a new one; inputs are never
// mutated. Operations targeting a record id that does not exist are silent
// no-ops returning the input snapshot unchanged, with no timestamp bump:
// concurrent removes and moves from other replicas are expected, so a missing
// target is ordinary, not an error.

// Upsert replaces the record with the same id positionally, or appends it.
// Always bumps the board's modification time.
func Upsert(b Board, r Record) Board {
	windows := make([]Record, len(b.Windows))
	replaced := false
	for i, w := range b.Windows {
		if w.ID == r.ID {
			windows[i] = r
			replaced = true
		} else {
			windows[i] = w
		}
	}
	if !replaced {
		windows = append(windows, r)
	}
	return touched(b, windows)
}

// Remove filters the record out by id. If no record matches, the input
// snapshot is returned unchanged with no timestamp bump.
func Remove(b Board, recordID string) Board {
	if _, ok := b.RecordByID(recordID); !ok {
		return b
	}
	windows := make([]Record, 0, len(b.Windows)-1)
	for _, w := range b.Windows {
		if w.ID != recordID {
			windows = append(windows, w)
		}
	}
	return touched(b, windows)
}

// Move reassigns a record to (toColumnID, toOrder) and repairs the order
// values of every other record in a single pass: records after the moved one
// in its original column shift down to close the gap, and records at or after
// the insertion point in the destination column shift up to make room. The
// make-room test runs against gap-adjusted orders, so a same-column move
// behaves like removing the record and reinserting it at the target index.
// toOrder is clamped to one past the destination column's highest remaining
// rank. No-op if the record does not exist.
func Move(b Board, recordID, toColumnID string, toOrder int) Board {
	moved, ok := b.RecordByID(recordID)
	if !ok {
		return b
	}
	fromColumnID, fromOrder := moved.ColumnID, moved.Order

	// Append position after the notional removal, for clamping. Computed
	// against gap-adjusted ranks rather than occupancy, because ranks can be
	// sparse after a removal or a merge with a peer.
	end := 0
	for _, w := range b.Windows {
		if w.ID == recordID || w.ColumnID != toColumnID {
			continue
		}
		order := w.Order
		if w.ColumnID == fromColumnID && w.Order > fromOrder {
			order--
		}
		if order >= end {
			end = order + 1
		}
	}
	if toOrder > end {
		toOrder = end
	}
	if toOrder < 0 {
		toOrder = 0
	}

	windows := make([]Record, len(b.Windows))
	for i, w := range b.Windows {
		if w.ID == recordID {
			w.ColumnID = toColumnID
			w.Order = toOrder
			w.LastActiveMs = nowMs()
			windows[i] = w
			continue
		}
		order := w.Order
		if w.ColumnID == fromColumnID && w.Order > fromOrder {
			order--
		}
		if w.ColumnID == toColumnID && order >= toOrder {
			order++
		}
		w.Order = order
		windows[i] = w
	}
	return touched(b, windows)
}

// UpdateStatus sets the record's open flag. No-op if the record does not
// exist.
func UpdateStatus(b Board, recordID string, isOpen bool) Board {
	r, ok := b.RecordByID(recordID)
	if !ok {
		return b
	}
	r.IsOpen = isOpen
	r.LastActiveMs = nowMs()
	return Upsert(b, r)
}

// FieldPatch is a partial change-set for a record. Nil fields are left
// untouched.
type FieldPatch struct {
	Name   *string
	Path   *string
	Branch *string
}

// UpdateFields merges the patch into the matching record. No-op if the record
// does not exist.
func UpdateFields(b Board, recordID string, patch FieldPatch) Board {
	r, ok := b.RecordByID(recordID)
	if !ok {
		return b
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Path != nil {
		r.Path = *patch.Path
	}
	if patch.Branch != nil {
		r.Branch = *patch.Branch
	}
	r.LastActiveMs = nowMs()
	return Upsert(b, r)
}

// touched returns b with the new window set and a bumped modification time.
// The clock never moves the board backwards: if the wall clock lags the
// snapshot's timestamp (clock skew between replicas), the prior value is kept
// so lastModified stays monotonic.
func touched(b Board, windows []Record) Board {
	now := nowMs()
	if now < b.LastModifiedMs {
		now = b.LastModifiedMs
	}
	b.Windows = windows
	b.LastModifiedMs = now
	return b
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Order < rs[j].Order })
}

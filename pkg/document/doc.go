// Package document implements the replicated board document: a conflict-free,
// state-based merge structure holding the record mapping and the ordered
// column sequence.
//
// The document is what makes concurrent replicas safe. Records live in a
// last-writer-wins map keyed by record id (whole-record granularity: the
// winning replica's value takes the entire record), columns live in an
// ordered sequence whose elements carry dense position identifiers, and a
// small metadata map carries the board version and modification time. Merge
// is commutative, associative and idempotent, so replicas exchanging update
// blobs in any order, any number of times, converge on the same state.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duskmoor/corkboard/pkg/board"
)

// updateFormat identifies the update blob layout. Blobs with a different
// format are rejected without touching document state.
const updateFormat = 1

const (
	metaVersion      = "version"
	metaLastModified = "last_modified_ms"
)

// stamp is a lamport timestamp with a replica tie-break. Stamps from
// different replicas never compare equal, which is what makes the
// last-writer-wins rule deterministic.
type stamp struct {
	Counter uint64 `json:"c"`
	Replica string `json:"r"`
}

func (s stamp) newer(o stamp) bool {
	if s.Counter != o.Counter {
		return s.Counter > o.Counter
	}
	return s.Replica > o.Replica
}

// recordEntry is one slot of the replicated record map. Deleted entries stay
// behind as tombstones so a removal wins over a concurrent stale update and
// survives merge in either direction.
type recordEntry struct {
	Stamp   stamp        `json:"stamp"`
	Deleted bool         `json:"deleted,omitempty"`
	Record  board.Record `json:"record,omitempty"`
}

// columnElem is one element of the replicated column sequence, keyed by
// column id. The position identifier orders elements; the stamp resolves
// concurrent edits to the same column.
type columnElem struct {
	Pos     position     `json:"pos"`
	Stamp   stamp        `json:"stamp"`
	Deleted bool         `json:"deleted,omitempty"`
	Column  board.Column `json:"column,omitempty"`
}

// metaEntry is a last-writer-wins register for a scalar metadata value.
type metaEntry struct {
	Value int64 `json:"v"`
	Stamp stamp `json:"s"`
}

// updatePayload is the wire shape of an exported update blob.
type updatePayload struct {
	Format  int                    `json:"format"`
	Records map[string]recordEntry `json:"records"`
	Columns map[string]columnElem  `json:"columns"`
	Meta    map[string]metaEntry   `json:"meta"`
}

// Doc is a replicated board document owned by a single replica. All methods
// are safe for concurrent use; observers never see a partially applied load
// or merge.
type Doc struct {
	mu        sync.Mutex
	replicaID string
	clock     uint64

	records map[string]recordEntry
	columns map[string]columnElem
	meta    map[string]metaEntry

	observers map[int]func()
	nextObs   int
}

// New creates an empty document for the given replica. The replica id feeds
// stamp tie-breaks and position identifiers; it must be unique per process.
func New(replicaID string) *Doc {
	return &Doc{
		replicaID: replicaID,
		records:   make(map[string]recordEntry),
		columns:   make(map[string]columnElem),
		meta:      make(map[string]metaEntry),
		observers: make(map[int]func()),
	}
}

// ReplicaID returns the id this document stamps its writes with.
func (d *Doc) ReplicaID() string {
	return d.replicaID
}

func (d *Doc) tick() stamp {
	d.clock++
	return stamp{Counter: d.clock, Replica: d.replicaID}
}

// LoadState replaces the record map and column sequence wholesale with the
// contents of the given board, in one atomic transaction. Only entries whose
// value actually changed are restamped; records and columns present in the
// document but absent from the board are tombstoned so their removal
// propagates to other replicas.
func (d *Doc) LoadState(b board.Board) {
	d.mu.Lock()
	changed := false

	keep := make(map[string]bool, len(b.Windows))
	for _, r := range b.Windows {
		keep[r.ID] = true
		cur, ok := d.records[r.ID]
		if ok && !cur.Deleted && cur.Record == r {
			continue
		}
		d.records[r.ID] = recordEntry{Stamp: d.tick(), Record: r}
		changed = true
	}
	for id, e := range d.records {
		if !keep[id] && !e.Deleted {
			d.records[id] = recordEntry{Stamp: d.tick(), Deleted: true}
			changed = true
		}
	}

	changed = d.loadColumns(b.Columns) || changed
	changed = d.setMeta(metaVersion, int64(b.Version)) || changed
	changed = d.setMeta(metaLastModified, b.LastModifiedMs) || changed

	d.mu.Unlock()
	if changed {
		d.notify()
	}
}

// loadColumns reconciles the column sequence against the given ordered slice.
// Caller holds d.mu.
func (d *Doc) loadColumns(cols []board.Column) bool {
	changed := false
	keep := make(map[string]bool, len(cols))
	var prev position
	for _, c := range cols {
		keep[c.ID] = true
		cur, ok := d.columns[c.ID]
		if ok && !cur.Deleted && cur.Column == c && (prev == nil || prev.compare(cur.Pos) < 0) {
			prev = cur.Pos
			continue
		}
		pos := posBetween(prev, nil, d.replicaID)
		d.columns[c.ID] = columnElem{Pos: pos, Stamp: d.tick(), Column: c}
		prev = pos
		changed = true
	}
	for id, e := range d.columns {
		if !keep[id] && !e.Deleted {
			d.columns[id] = columnElem{Pos: e.Pos, Stamp: d.tick(), Deleted: true}
			changed = true
		}
	}
	return changed
}

// setMeta writes a metadata register if the value differs. Caller holds d.mu.
func (d *Doc) setMeta(key string, value int64) bool {
	if cur, ok := d.meta[key]; ok && cur.Value == value {
		return false
	}
	d.meta[key] = metaEntry{Value: value, Stamp: d.tick()}
	return true
}

// ExtractState reads the current document contents into a fresh Board
// snapshot. Records are sorted by id to make extraction deterministic across
// replicas that hold the same document state.
func (d *Doc) ExtractState() board.Board {
	d.mu.Lock()
	defer d.mu.Unlock()

	windows := make([]board.Record, 0, len(d.records))
	for _, e := range d.records {
		if !e.Deleted {
			windows = append(windows, e.Record)
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ID < windows[j].ID })

	elems := make([]columnElem, 0, len(d.columns))
	for _, e := range d.columns {
		if !e.Deleted {
			elems = append(elems, e)
		}
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].Pos.compare(elems[j].Pos) < 0 })
	columns := make([]board.Column, len(elems))
	for i, e := range elems {
		columns[i] = e.Column
	}

	version := int64(board.SchemaVersion)
	if e, ok := d.meta[metaVersion]; ok {
		version = e.Value
	}
	var lastModified int64
	if e, ok := d.meta[metaLastModified]; ok {
		lastModified = e.Value
	}

	return board.Board{
		Windows:        windows,
		Columns:        columns,
		Version:        int(version),
		LastModifiedMs: lastModified,
	}
}

// UpsertRecord writes a single record into the replicated map and bumps the
// document's modification time to the record's last-active time if newer.
func (d *Doc) UpsertRecord(r board.Record) {
	d.mu.Lock()
	d.records[r.ID] = recordEntry{Stamp: d.tick(), Record: r}
	if cur, ok := d.meta[metaLastModified]; !ok || r.LastActiveMs > cur.Value {
		d.setMeta(metaLastModified, r.LastActiveMs)
	}
	d.mu.Unlock()
	d.notify()
}

// DeleteRecord tombstones a single record and bumps the document's
// modification time. No-op if the record is unknown or already deleted.
func (d *Doc) DeleteRecord(id string) {
	d.mu.Lock()
	cur, ok := d.records[id]
	if !ok || cur.Deleted {
		d.mu.Unlock()
		return
	}
	d.records[id] = recordEntry{Stamp: d.tick(), Deleted: true}
	if now := time.Now().UnixMilli(); d.meta[metaLastModified].Value < now {
		d.setMeta(metaLastModified, now)
	}
	d.mu.Unlock()
	d.notify()
}

// AddColumn inserts a column into the sequence at the given index (clamped to
// the sequence bounds).
func (d *Doc) AddColumn(c board.Column, at int) {
	d.mu.Lock()
	live := d.liveElems()
	if at < 0 {
		at = 0
	}
	if at > len(live) {
		at = len(live)
	}
	var lo, hi position
	if at > 0 {
		lo = live[at-1].Pos
	}
	if at < len(live) {
		hi = live[at].Pos
	}
	d.columns[c.ID] = columnElem{Pos: posBetween(lo, hi, d.replicaID), Stamp: d.tick(), Column: c}
	d.mu.Unlock()
	d.notify()
}

// RemoveColumn tombstones a column element. Records referencing it are left
// alone; renderers treat them as unplaced.
func (d *Doc) RemoveColumn(id string) {
	d.mu.Lock()
	cur, ok := d.columns[id]
	if !ok || cur.Deleted {
		d.mu.Unlock()
		return
	}
	d.columns[id] = columnElem{Pos: cur.Pos, Stamp: d.tick(), Deleted: true}
	d.mu.Unlock()
	d.notify()
}

// liveElems returns the non-deleted column elements in sequence order.
// Caller holds d.mu.
func (d *Doc) liveElems() []columnElem {
	elems := make([]columnElem, 0, len(d.columns))
	for _, e := range d.columns {
		if !e.Deleted {
			elems = append(elems, e)
		}
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].Pos.compare(elems[j].Pos) < 0 })
	return elems
}

// Update exports the document's full state as an opaque blob suitable for
// ApplyUpdate on any replica.
func (d *Doc) Update() ([]byte, error) {
	d.mu.Lock()
	payload := updatePayload{
		Format:  updateFormat,
		Records: d.records,
		Columns: d.columns,
		Meta:    d.meta,
	}
	data, err := json.Marshal(payload)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to export update: %w", err)
	}
	return data, nil
}

// ApplyUpdate merges an update blob into the document. The merge is
// commutative, associative and idempotent: applying the same blob twice, or
// two blobs in either order, yields the same document. A malformed blob is
// rejected with the prior state left intact. The returned flag reports
// whether the merge changed the document at all - false means the blob
// carried nothing the document had not already seen.
func (d *Doc) ApplyUpdate(data []byte) (bool, error) {
	var payload updatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Errorf("malformed update: %w", err)
	}
	if payload.Format != updateFormat {
		return false, fmt.Errorf("unsupported update format %d", payload.Format)
	}

	d.mu.Lock()
	changed := false
	for id, in := range payload.Records {
		cur, ok := d.records[id]
		if !ok || in.Stamp.newer(cur.Stamp) {
			d.records[id] = in
			changed = true
		}
		d.observe(in.Stamp)
	}
	for id, in := range payload.Columns {
		cur, ok := d.columns[id]
		if !ok || in.Stamp.newer(cur.Stamp) {
			d.columns[id] = in
			changed = true
		}
		d.observe(in.Stamp)
	}
	for key, in := range payload.Meta {
		cur, ok := d.meta[key]
		if !ok || in.Stamp.newer(cur.Stamp) {
			d.meta[key] = in
			changed = true
		}
		d.observe(in.Stamp)
	}
	d.mu.Unlock()

	if changed {
		d.notify()
	}
	return changed, nil
}

// observe advances the lamport clock past a remote stamp. Caller holds d.mu.
func (d *Doc) observe(s stamp) {
	if s.Counter > d.clock {
		d.clock = s.Counter
	}
}

// OnChange registers an observer fired after every change to the record map,
// column sequence or metadata. The returned unsubscribe function is
// idempotent and safe to call from within the callback itself.
func (d *Doc) OnChange(fn func()) func() {
	d.mu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

func (d *Doc) notify() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

package board

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current Board schema version. It identifies the shape
// of persisted snapshots and is not a logical clock.
const SchemaVersion = 1

// Record represents a single tracked window on the board.
// Records are value objects: operations replace them, never mutate them.
type Record struct {
	ID           string `json:"id"`             // UUID - unique identifier, immutable for the record's lifetime
	ColumnID     string `json:"column_id"`      // Column this record is placed in (reference, not ownership)
	Order        int    `json:"order"`          // Dense rank within the column, starting at 0
	Name         string `json:"name"`           // Display name, never empty
	Path         string `json:"path"`           // Workspace path, arbitrary
	Branch       string `json:"branch,omitempty"` // Optional VCS branch
	IsOpen       bool   `json:"is_open"`        // Whether the window is currently open
	CreatedAtMs  int64  `json:"created_at_ms"`  // Unix millis at creation, immutable
	LastActiveMs int64  `json:"last_active_ms"` // Unix millis, bumped on every mutation of this record
}

// Column represents a named ordered bucket of records.
type Column struct {
	ID    string `json:"id"`              // UUID - unique identifier
	Name  string `json:"name"`            // 1-50 characters
	Order int    `json:"order"`           // Position among columns, unique
	Color string `json:"color,omitempty"` // Optional display color, "#RRGGBB"
}

// Board is the aggregate root: the full snapshot of records and columns.
type Board struct {
	Windows        []Record `json:"windows"`
	Columns        []Column `json:"columns"`
	Version        int      `json:"version"`
	LastModifiedMs int64    `json:"last_modified_ms"`
}

// FieldError reports a single validation failure as a field path plus a
// human-readable message. Validation never panics and never returns a bare
// error: callers receive the full list and decide whether to reject or
// warn-and-proceed.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the Record's field values. Returns an empty slice when the
// record is well formed.
func (r Record) Validate() []FieldError {
	var errs []FieldError
	if !isValidUUID(r.ID) {
		errs = append(errs, FieldError{"id", "not a valid UUID"})
	}
	if r.ColumnID == "" {
		errs = append(errs, FieldError{"column_id", "cannot be empty"})
	}
	if r.Order < 0 {
		errs = append(errs, FieldError{"order", fmt.Sprintf("must be >= 0, got %d", r.Order)})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{"name", "cannot be empty"})
	}
	if r.CreatedAtMs <= 0 {
		errs = append(errs, FieldError{"created_at_ms", "must be a positive timestamp"})
	}
	if r.LastActiveMs <= 0 {
		errs = append(errs, FieldError{"last_active_ms", "must be a positive timestamp"})
	}
	return errs
}

// Validate checks the Column's field values.
func (c Column) Validate() []FieldError {
	var errs []FieldError
	if !isValidUUID(c.ID) {
		errs = append(errs, FieldError{"id", "not a valid UUID"})
	}
	if len(c.Name) < 1 || len(c.Name) > 50 {
		errs = append(errs, FieldError{"name", fmt.Sprintf("must be 1-50 characters, got %d", len(c.Name))})
	}
	if c.Order < 0 {
		errs = append(errs, FieldError{"order", fmt.Sprintf("must be >= 0, got %d", c.Order)})
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		errs = append(errs, FieldError{"color", fmt.Sprintf("must match #RRGGBB, got %q", c.Color)})
	}
	return errs
}

// Validate checks the whole Board, prefixing nested failures with their
// element path (e.g. "windows[2].name"). Column order uniqueness is checked
// here because it is a board-level invariant, not a column-level one.
func (b Board) Validate() []FieldError {
	var errs []FieldError
	if b.Version < 1 {
		errs = append(errs, FieldError{"version", fmt.Sprintf("must be >= 1, got %d", b.Version)})
	}
	if b.LastModifiedMs <= 0 {
		errs = append(errs, FieldError{"last_modified_ms", "must be a positive timestamp"})
	}
	for i, w := range b.Windows {
		for _, fe := range w.Validate() {
			errs = append(errs, FieldError{fmt.Sprintf("windows[%d].%s", i, fe.Path), fe.Message})
		}
	}
	seenOrder := make(map[int]string, len(b.Columns))
	for i, c := range b.Columns {
		for _, fe := range c.Validate() {
			errs = append(errs, FieldError{fmt.Sprintf("columns[%d].%s", i, fe.Path), fe.Message})
		}
		if other, dup := seenOrder[c.Order]; dup {
			errs = append(errs, FieldError{fmt.Sprintf("columns[%d].order", i),
				fmt.Sprintf("duplicates order %d of column %s", c.Order, other)})
		} else {
			seenOrder[c.Order] = c.ID
		}
	}
	return errs
}

// NewRecord creates a record placed at the given column and order, stamped
// with the current time.
func NewRecord(columnID string, order int, name, path string) Record {
	now := nowMs()
	return Record{
		ID:           uuid.NewString(),
		ColumnID:     columnID,
		Order:        order,
		Name:         name,
		Path:         path,
		CreatedAtMs:  now,
		LastActiveMs: now,
	}
}

// DefaultColumns returns the columns a fresh board is seeded with. The ids
// are derived deterministically from the column names so independent replicas
// seeding their own default board agree on column identity and their merged
// boards do not end up with duplicate columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: seedColumnID("backlog"), Name: "backlog", Order: 0, Color: "#6e7681"},
		{ID: seedColumnID("active"), Name: "active", Order: 1, Color: "#3fb950"},
		{ID: seedColumnID("parked"), Name: "parked", Order: 2, Color: "#d29922"},
	}
}

func seedColumnID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("corkboard/column/"+name)).String()
}

// DefaultBoard returns an empty board seeded with the default columns.
func DefaultBoard() Board {
	return Board{
		Windows:        []Record{},
		Columns:        DefaultColumns(),
		Version:        SchemaVersion,
		LastModifiedMs: nowMs(),
	}
}

// ColumnByID returns the column with the given id, or false if the board has
// no such column. Records referencing a missing column are tolerated
// everywhere; callers render them as unplaced.
func (b Board) ColumnByID(id string) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the column with the given name, or false.
func (b Board) ColumnByName(name string) (Column, bool) {
	for _, c := range b.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RecordByID returns the record with the given id, or false.
func (b Board) RecordByID(id string) (Record, bool) {
	for _, w := range b.Windows {
		if w.ID == id {
			return w, true
		}
	}
	return Record{}, false
}

// InColumn returns the records placed in the given column, sorted by order.
func (b Board) InColumn(columnID string) []Record {
	var out []Record
	for _, w := range b.Windows {
		if w.ColumnID == columnID {
			out = append(out, w)
		}
	}
	sortRecords(out)
	return out
}

// NextOrder returns the order a record appended to the column should take:
// one past the highest rank in use. Ranks can carry gaps after a removal or
// a merge with a peer, so occupancy alone is not a safe append position.
func (b Board) NextOrder(columnID string) int {
	next := 0
	for _, w := range b.Windows {
		if w.ColumnID == columnID && w.Order >= next {
			next = w.Order + 1
		}
	}
	return next
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// nowMs is a package hook so transform tests can run against a fixed clock.
var nowMs = func() int64 {
	return time.Now().UnixMilli()
}

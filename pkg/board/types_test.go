package board

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Record)
		wantPaths []string
	}{
		{
			name:      "well-formed record passes",
			mutate:    func(r *Record) {},
			wantPaths: nil,
		},
		{
			name:      "empty name",
			mutate:    func(r *Record) { r.Name = "" },
			wantPaths: []string{"name"},
		},
		{
			name:      "negative order",
			mutate:    func(r *Record) { r.Order = -1 },
			wantPaths: []string{"order"},
		},
		{
			name:      "bad id",
			mutate:    func(r *Record) { r.ID = "not-a-uuid" },
			wantPaths: []string{"id"},
		},
		{
			name:      "zero timestamps",
			mutate:    func(r *Record) { r.CreatedAtMs = 0; r.LastActiveMs = 0 },
			wantPaths: []string{"created_at_ms", "last_active_ms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRecord("backlog", 0, "one")
			tt.mutate(&r)
			errs := r.Validate()
			var paths []string
			for _, fe := range errs {
				paths = append(paths, fe.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestColumnValidate(t *testing.T) {
	valid := Column{ID: uuid.NewString(), Name: "backlog", Order: 0, Color: "#aaBB99"}
	assert.Empty(t, valid.Validate())

	noColor := valid
	noColor.Color = ""
	assert.Empty(t, noColor.Validate(), "color is optional")

	badColor := valid
	badColor.Color = "red"
	errs := badColor.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "color", errs[0].Path)

	longName := valid
	longName.Name = string(make([]byte, 51))
	errs = longName.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "name", errs[0].Path)
}

func TestBoardValidate_PrefixesNestedPaths(t *testing.T) {
	b := DefaultBoard()
	bad := testRecord(b.Columns[0].ID, 0, "ok")
	bad.Name = ""
	b.Windows = append(b.Windows, bad)

	errs := b.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "windows[0].name", errs[0].Path)
}

func TestBoardValidate_DuplicateColumnOrder(t *testing.T) {
	b := DefaultBoard()
	b.Columns[1].Order = b.Columns[0].Order

	errs := b.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "columns[1].order", errs[0].Path)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	r := testRecord("backlog", 2, "one")
	r.Branch = "feature/x"
	r.IsOpen = true

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
	assert.Empty(t, back.Validate())
}

func TestDefaultBoard(t *testing.T) {
	b := DefaultBoard()
	assert.Empty(t, b.Validate())
	assert.Equal(t, SchemaVersion, b.Version)
	require.Len(t, b.Columns, 3)
	assert.Equal(t, "backlog", b.Columns[0].Name)
}

func TestLookupsAndInColumn(t *testing.T) {
	w1 := testRecord("backlog", 1, "w1")
	w2 := testRecord("backlog", 0, "w2")
	a1 := testRecord("active", 0, "a1")
	b := testBoard(w1, w2, a1)

	got := b.InColumn("backlog")
	require.Len(t, got, 2)
	assert.Equal(t, w2.ID, got[0].ID, "InColumn sorts by order")

	_, ok := b.RecordByID("missing")
	assert.False(t, ok)

	col, ok := b.ColumnByName("active")
	require.True(t, ok)
	assert.Equal(t, "active", col.ID)
}

func TestNextOrder(t *testing.T) {
	b := testBoard()
	assert.Equal(t, 0, b.NextOrder("backlog"), "empty column appends at 0")

	b = testBoard(testRecord("backlog", 0, "w0"), testRecord("backlog", 1, "w1"))
	assert.Equal(t, 2, b.NextOrder("backlog"))

	// A gap left by a removal must not be handed out again.
	b = testBoard(testRecord("backlog", 0, "w0"), testRecord("backlog", 2, "w2"))
	assert.Equal(t, 3, b.NextOrder("backlog"))
}

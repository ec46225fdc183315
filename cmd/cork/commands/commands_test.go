package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskmoor/corkboard/internal/config"
	"github.com/duskmoor/corkboard/pkg/board"
)

func testBoard() board.Board {
	b := board.DefaultBoard()
	backlog := b.Columns[0]
	b = board.Upsert(b, board.NewRecord(backlog.ID, 0, "api", "/src/api"))
	b = board.Upsert(b, board.NewRecord(backlog.ID, 1, "web", "/src/web"))
	return b
}

func TestResolveColumn(t *testing.T) {
	b := testBoard()

	t.Run("by name", func(t *testing.T) {
		c, err := resolveColumn(b, "active")
		require.NoError(t, err)
		assert.Equal(t, "active", c.Name)
	})

	t.Run("by id prefix", func(t *testing.T) {
		want := b.Columns[2]
		c, err := resolveColumn(b, want.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, want.ID, c.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := resolveColumn(b, "doesnotexist")
		assert.Error(t, err)
	})
}

func TestResolveRecord(t *testing.T) {
	b := testBoard()

	t.Run("by name", func(t *testing.T) {
		r, err := resolveRecord(b, "api")
		require.NoError(t, err)
		assert.Equal(t, "/src/api", r.Path)
	})

	t.Run("by id and prefix", func(t *testing.T) {
		want := b.Windows[0]
		r, err := resolveRecord(b, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, r.ID)

		r, err = resolveRecord(b, want.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, want.ID, r.ID)
	})

	t.Run("ambiguous name", func(t *testing.T) {
		dup := b
		backlog := dup.Columns[0]
		dup = board.Upsert(dup, board.NewRecord(backlog.ID, 2, "api", "/other/api"))
		_, err := resolveRecord(dup, "api")
		assert.Error(t, err)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := resolveRecord(b, "nosuchwindow")
		assert.Error(t, err)
	})
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("123456789abc"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	oldPath := configPath
	configPath = filepath.Join(dir, "corkboard.yml")
	defer func() { configPath = oldPath }()

	require.NoError(t, runInit(initCmd, []string{"team-board"}))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "team-board", cfg.Board.Name)
	assert.Equal(t, "file", cfg.Store.Backend)

	// A second init without --force must refuse to overwrite.
	forceInit = false
	err = runInit(initCmd, []string{"other"})
	assert.Error(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "team-board")
}

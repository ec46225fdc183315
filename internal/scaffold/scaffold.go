// Package scaffold creates the files a new board needs in a directory.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/duskmoor/corkboard/internal/config"
	"github.com/duskmoor/corkboard/internal/printer"
)

// CheckExisting returns an error when a configuration file already exists at
// path, so init does not silently clobber it.
func CheckExisting(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return nil
}

// Initialize writes the configuration file and creates the local state
// directory the default file backend uses.
func Initialize(path, boardName string) error {
	if err := os.WriteFile(path, []byte(config.Scaffold(boardName)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	stateDir := filepath.Join(filepath.Dir(path), ".cork")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", stateDir, err)
	}
	return nil
}

// PrintSuccess prints the post-init summary.
func PrintSuccess(path, boardName string) {
	printer.Success("Created %s for board '%s'", path, boardName)
	printer.Info("Run 'cork add <name> <path>' to track your first window")
}

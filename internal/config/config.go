// Package config loads and validates the corkboard.yml configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/duskmoor/corkboard/internal/history"
)

// DefaultFileName is where commands look for configuration by default.
const DefaultFileName = "corkboard.yml"

// Config represents the top-level corkboard.yml configuration.
type Config struct {
	Version string      `yaml:"version"`
	Board   BoardConfig `yaml:"board"`
	Store   StoreConfig `yaml:"store"`
	History *HistConfig `yaml:"history,omitempty"`
}

// BoardConfig names the board and the replica.
type BoardConfig struct {
	Name string `yaml:"name"`
	// Replica identifies this process among peers. Optional; a random id is
	// used when empty, which is fine for everything except debugging logs.
	Replica string `yaml:"replica,omitempty"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"`             // "redis" or "file"
	RedisURL string `yaml:"redis_url,omitempty"` // overridable via CORK_REDIS_URL
	Path     string `yaml:"path,omitempty"`      // state file path for the file backend
}

// HistConfig bounds the undo log.
type HistConfig struct {
	Limit int `yaml:"limit"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Board.Name == "" {
		return fmt.Errorf("board.name is required")
	}
	switch c.Store.Backend {
	case "redis":
		if c.Store.RedisURL == "" && os.Getenv("CORK_REDIS_URL") == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend (or set CORK_REDIS_URL)")
		}
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown store.backend: %q (expected: redis or file)", c.Store.Backend)
	}
	if c.History != nil && c.History.Limit < 1 {
		return fmt.Errorf("history.limit must be >= 1, got %d", c.History.Limit)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("CORK_REDIS_URL"); url != "" {
		c.Store.RedisURL = url
	}
}

// HistoryLimit returns the configured undo bound, or the default.
func (c *Config) HistoryLimit() int {
	if c.History != nil {
		return c.History.Limit
	}
	return history.DefaultLimit
}

// Scaffold returns the default corkboard.yml contents written by `cork init`.
func Scaffold(boardName string) string {
	return fmt.Sprintf(`version: "1.0"

board:
  name: %s

store:
  backend: file
  path: .cork/state.json

  # To coordinate replicas through Redis instead:
  # backend: redis
  # redis_url: redis://localhost:6379

history:
  limit: %d
`, boardName, history.DefaultLimit)
}

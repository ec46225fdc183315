package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultPollInterval is how often the file watch checks for external writes.
const defaultPollInterval = 200 * time.Millisecond

// FileStore persists board snapshots as a single JSON file on a path shared
// between replicas (a home directory, a synced folder). External changes are
// detected by polling the file's modification time and size, so watch
// deliveries can be coalesced: a replica that writes twice between polls is
// observed once, which the sync protocol tolerates.
type FileStore struct {
	path string
	poll time.Duration
}

// NewFileStore creates a store backed by the given file path. The parent
// directory is created on first save if it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	return &FileStore{path: path, poll: defaultPollInterval}, nil
}

// SetPollInterval overrides the watch polling interval. Intended for tests.
func (s *FileStore) SetPollInterval(d time.Duration) {
	s.poll = d
}

// Load reads the snapshot file. A missing or malformed file fails soft to the
// default snapshot; other I/O errors propagate.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return DefaultSnapshot(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read board state file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return DefaultSnapshot(), nil
	}
	return snap, nil
}

// Save writes the snapshot atomically: marshal to a temp file in the same
// directory, then rename over the target, so watchers never observe a partial
// write.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cork-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Watch polls the snapshot file and delivers a snapshot whenever its
// modification time or size changes. The first poll establishes a baseline;
// only subsequent changes are delivered.
func (s *FileStore) Watch(ctx context.Context) (*Subscription, error) {
	eventsChan := make(chan Snapshot, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	// Baseline before returning, so a save issued right after Watch() is
	// always observed as a change.
	lastMod, lastSize := s.fileSignature()

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				mod, size := s.fileSignature()
				if mod == lastMod && size == lastSize {
					continue
				}
				lastMod, lastSize = mod, size

				snap, err := s.Load(subCtx)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- snap:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return newSubscription(eventsChan, errorsChan, cancelFunc), nil
}

func (s *FileStore) fileSignature() (int64, int64) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, -1
	}
	return info.ModTime().UnixNano(), info.Size()
}

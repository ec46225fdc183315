package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists board snapshots in a Redis hash and notifies other
// replicas through Pub/Sub. The store is safe for concurrent use.
type RedisStore struct {
	rdb       *redis.Client
	boardName string
}

// NewRedisStore creates a store for the named board. All keys and channels
// are namespaced with the board name.
func NewRedisStore(redisOpts *redis.Options, boardName string) (*RedisStore, error) {
	if boardName == "" {
		return nil, fmt.Errorf("board name cannot be empty")
	}
	return &RedisStore{
		rdb:       redis.NewClient(redisOpts),
		boardName: boardName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Load reads the persisted snapshot. Missing or malformed state fails soft to
// the default snapshot; Redis I/O errors propagate.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	hashData, err := s.rdb.HGetAll(ctx, StateKey(s.boardName)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read board state from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return DefaultSnapshot(), nil
	}
	snap, err := hashToSnapshot(hashData)
	if err != nil {
		// Malformed prior state must not propagate as a format error.
		return DefaultSnapshot(), nil
	}
	return snap, nil
}

// Save writes the snapshot hash and publishes the full snapshot JSON to the
// state events channel so other replicas' Watch picks it up.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	hash := snapshotToHash(snap)
	if err := s.rdb.HSet(ctx, StateKey(s.boardName), hash).Err(); err != nil {
		return fmt.Errorf("failed to write board state to Redis: %w", err)
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for event: %w", err)
	}
	if err := s.rdb.Publish(ctx, StateEventsChannel(s.boardName), snapJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish state event: %w", err)
	}
	return nil
}

// Watch subscribes to state events for this board. Deliveries are at most
// once; a slow consumer may miss events, which the sync protocol tolerates.
func (s *RedisStore) Watch(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, StateEventsChannel(s.boardName))

	eventsChan := make(chan Snapshot, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal state event: %w", err):
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

// Serialization helpers for the snapshot hash. The board is JSON-encoded into
// a single field, the update blob is base64-encoded, and scalar fields get
// their own hash slots for queryability.

func snapshotToHash(snap Snapshot) map[string]interface{} {
	boardJSON, _ := json.Marshal(snap.Board)
	return map[string]interface{}{
		"board":       string(boardJSON),
		"update_b64":  base64.StdEncoding.EncodeToString(snap.Update),
		"origin":      snap.Origin,
		"saved_at_ms": snap.SavedMs,
	}
}

func hashToSnapshot(hash map[string]string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(hash["board"]), &snap.Board); err != nil {
		return Snapshot{}, fmt.Errorf("invalid board field: %w", err)
	}
	if b64 := hash["update_b64"]; b64 != "" {
		update, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("invalid update_b64 field: %w", err)
		}
		snap.Update = update
	}
	snap.Origin = hash["origin"]
	snap.SavedMs, _ = strconv.ParseInt(hash["saved_at_ms"], 10, 64)
	return snap, nil
}

package store

import "fmt"

// Redis key pattern helpers.
//
// All keys and Pub/Sub channels are namespaced by board name so multiple
// boards can safely share a single Redis server.
//
// Key pattern: cork:{board_name}:{entity}
// Channel pattern: cork:{board_name}:{event_type}_events

// StateKey returns the Redis key holding the persisted board snapshot.
// Pattern: cork:{board_name}:state
func StateKey(boardName string) string {
	return fmt.Sprintf("cork:%s:state", boardName)
}

// StateEventsChannel returns the Pub/Sub channel for snapshot save events.
// Pattern: cork:{board_name}:state_events
func StateEventsChannel(boardName string) string {
	return fmt.Sprintf("cork:%s:state_events", boardName)
}

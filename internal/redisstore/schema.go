package redisstore

import (
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Redis key pattern helpers
//
// All keys and the change channel are namespaced by track name so several
// tracks can share one Redis server.
//
// Key pattern: msgbus:{track}:{stream|table}
// Channel pattern: msgbus:{track}:changes

// StreamKey returns the Redis list holding a stream.
// Pattern: msgbus:{track}:{stream}
func StreamKey(track string, stream bus.Stream) string {
	return fmt.Sprintf("msgbus:%s:%s", track, stream)
}

// TableKey returns the Redis hash holding a table.
// Pattern: msgbus:{track}:{table}
func TableKey(track string, table bus.Table) string {
	return fmt.Sprintf("msgbus:%s:%s", track, table)
}

// MetaKey returns the hash marking a track as initialised.
// Pattern: msgbus:{track}:meta
func MetaKey(track string) string {
	return fmt.Sprintf("msgbus:%s:meta", track)
}

// ChangesChannel returns the Pub/Sub channel every mutation is announced on.
// Pattern: msgbus:{track}:changes
func ChangesChannel(track string) string {
	return fmt.Sprintf("msgbus:%s:changes", track)
}

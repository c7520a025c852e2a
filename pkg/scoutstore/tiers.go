// Package scoutstore provides the hybrid persistence layer for scouting data:
// a synchronous best-effort fast tier backed by an asynchronous durable tier,
// with hydration notifications when durable data surfaces in the fast tier.
package scoutstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned by a DurableTier when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// FastTier is a synchronous key-value cache of JSON strings. Implementations
// must never block on remote I/O longer than a short internal timeout; a
// failed or slow lookup is reported as a miss.
type FastTier interface {
	// Get returns the stored JSON string for key, or false on a miss.
	Get(key string) (string, bool)
	// Set stores a JSON string under key, replacing any previous value.
	Set(key string, raw string) error
}

// DurableTier is the transactional source of truth behind the fast tier.
// Records are partitioned into named collections.
type DurableTier interface {
	// Get retrieves the JSON value for key in collection. Returns ErrNotFound
	// when no record exists.
	Get(ctx context.Context, collection string, key string) (json.RawMessage, error)
	// Put stores the JSON value for key in collection, replacing any previous value.
	Put(ctx context.Context, collection string, key string, value json.RawMessage) error
}

// Collection names for durable records.
const (
	CollectionPlayers = "players"
	CollectionPitches = "pitches"
	CollectionEvents  = "events"
)

// Collections lists every durable collection, in routing-precedence order.
var Collections = []string{CollectionPlayers, CollectionPitches, CollectionEvents}

// CollectionForKey routes a logical key to its durable collection by prefix.
// Unrecognized keys route to the events collection.
func CollectionForKey(key string) string {
	switch {
	case strings.HasPrefix(key, "players_"):
		return CollectionPlayers
	case strings.HasPrefix(key, "pitches_"):
		return CollectionPitches
	case strings.HasPrefix(key, "events_"):
		return CollectionEvents
	default:
		return CollectionEvents
	}
}

package eventapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
)

// EventStore persists accepted scouting events.
type EventStore interface {
	// Append stores one event.
	Append(ctx context.Context, event types.ScoutEvent) error
	// ListByUser returns a user's events, most recent first.
	ListByUser(ctx context.Context, user string) ([]types.ScoutEvent, error)
}

// FileEventStore is an EventStore over a flat JSON file, for local and
// single-node deployments. The whole log is held in memory and rewritten on
// every append, which is fine at scouting volumes.
type FileEventStore struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	events []types.ScoutEvent
}

// NewFileEventStore opens (or initializes) the event log at path. A missing
// or unreadable file starts an empty log.
func NewFileEventStore(path string, logger zerolog.Logger) *FileEventStore {
	store := &FileEventStore{
		path:   path,
		logger: logger.With().Str("component", "FileEventStore").Str("path", path).Logger(),
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(raw, &store.events); err != nil {
			store.logger.Warn().Err(err).Msg("Event log unreadable; starting empty.")
			store.events = nil
		}
	}

	store.logger.Info().Int("events", len(store.events)).Msg("File event store opened.")
	return store
}

// Append stores one event and rewrites the log file.
func (s *FileEventStore) Append(_ context.Context, event types.ScoutEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	raw, err := json.MarshalIndent(s.events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal event log: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write event log %s: %w", s.path, err)
	}
	return nil
}

// ListByUser returns a user's events sorted by descending id.
func (s *FileEventStore) ListByUser(_ context.Context, user string) ([]types.ScoutEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]types.ScoutEvent, 0)
	for _, event := range s.events {
		if event.User == user {
			matched = append(matched, event)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched, nil
}

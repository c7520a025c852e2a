package eventapi

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// FirestoreEventStoreConfig holds configuration for the Firestore event store.
type FirestoreEventStoreConfig struct {
	ProjectID      string
	CollectionName string
}

// FirestoreEventStore is an EventStore over a Firestore collection, one
// document per event keyed by the event id.
type FirestoreEventStore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreEventStore creates a FirestoreEventStore around an injected
// client. The client's lifecycle is managed by the caller.
func NewFirestoreEventStore(cfg *FirestoreEventStoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreEventStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "scout-events"
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", collection).Msg("FirestoreEventStore initialized.")

	return &FirestoreEventStore{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("component", "FirestoreEventStore").Logger(),
	}, nil
}

// Append stores one event.
func (s *FirestoreEventStore) Append(ctx context.Context, event types.ScoutEvent) error {
	doc := s.client.Collection(s.collection).Doc(strconv.FormatInt(event.ID, 10))
	if _, err := doc.Set(ctx, event); err != nil {
		s.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to write event to Firestore.")
		return fmt.Errorf("firestore set for event %d: %w", event.ID, err)
	}
	return nil
}

// ListByUser returns a user's events sorted by descending id.
func (s *FirestoreEventStore) ListByUser(ctx context.Context, user string) ([]types.ScoutEvent, error) {
	query := s.client.Collection(s.collection).
		Where("user", "==", user).
		OrderBy("id", firestore.Desc)

	events := make([]types.ScoutEvent, 0)
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			s.logger.Error().Err(err).Str("user", user).Msg("Failed to iterate events from Firestore.")
			return nil, fmt.Errorf("firestore list for user %s: %w", user, err)
		}
		var event types.ScoutEvent
		if err := docSnap.DataTo(&event); err != nil {
			return nil, fmt.Errorf("firestore DataTo for user %s: %w", user, err)
		}
		events = append(events, event)
	}
	return events, nil
}

package scoutstore

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// durableDoc is the Firestore document shape for one durable record. The JSON
// value is stored opaquely as a string so arbitrary shapes round-trip intact.
type durableDoc struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

// FirestoreDurableTierConfig holds configuration for the Firestore durable tier.
type FirestoreDurableTierConfig struct {
	ProjectID string
	// CollectionPrefix optionally namespaces the routing collections, e.g.
	// "scout-logger-" yields "scout-logger-events".
	CollectionPrefix string
}

// FirestoreDurableTier is a DurableTier backed by Firestore, one document per
// logical key under each routing collection. Firestore collections come into
// existence on first write, so opening the tier needs no schema migration and
// is safe to repeat.
type FirestoreDurableTier struct {
	client *firestore.Client
	prefix string
	logger zerolog.Logger
}

// NewFirestoreDurableTier creates a new FirestoreDurableTier around an
// injected client. The client's lifecycle is managed by the caller.
func NewFirestoreDurableTier(cfg *FirestoreDurableTierConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreDurableTier, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection_prefix", cfg.CollectionPrefix).Msg("FirestoreDurableTier initialized.")

	return &FirestoreDurableTier{
		client: client,
		prefix: cfg.CollectionPrefix,
		logger: logger.With().Str("component", "FirestoreDurableTier").Logger(),
	}, nil
}

// Get retrieves the JSON value for key from its routing collection.
func (t *FirestoreDurableTier) Get(ctx context.Context, collection string, key string) (json.RawMessage, error) {
	docSnap, err := t.client.Collection(t.prefix+collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		t.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("Failed to get durable record from Firestore.")
		return nil, fmt.Errorf("firestore get for %s/%s: %w", collection, key, err)
	}

	var doc durableDoc
	if err := docSnap.DataTo(&doc); err != nil {
		t.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("Failed to map Firestore document data.")
		return nil, fmt.Errorf("firestore DataTo for %s/%s: %w", collection, key, err)
	}

	return json.RawMessage(doc.Value), nil
}

// Put stores the JSON value for key in its routing collection.
func (t *FirestoreDurableTier) Put(ctx context.Context, collection string, key string, value json.RawMessage) error {
	doc := durableDoc{Key: key, Value: string(value)}
	if _, err := t.client.Collection(t.prefix+collection).Doc(key).Set(ctx, doc); err != nil {
		t.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("Failed to write durable record to Firestore.")
		return fmt.Errorf("firestore set for %s/%s: %w", collection, key, err)
	}
	t.logger.Debug().Str("collection", collection).Str("key", key).Msg("Successfully wrote durable record to Firestore.")
	return nil
}

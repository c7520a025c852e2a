// Package archive provides optional sinks for accepted scouting events: a
// GCS cold store holding the raw payloads and a batched BigQuery mirror for
// analytics. Sinks are fed after the primary event store has accepted the
// event; their failures never reach the client.
package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
)

// ColdStoreConfig holds configuration for the GCS cold store.
type ColdStoreConfig struct {
	BucketName   string
	ObjectPrefix string
}

// ColdStore archives each accepted event as one compressed JSON object,
// named events/<user>/<id>.json.gz under the configured prefix.
type ColdStore struct {
	client StorageClient
	config ColdStoreConfig
	logger zerolog.Logger
}

// NewColdStore creates a cold store over an abstracted storage client.
func NewColdStore(client StorageClient, config ColdStoreConfig, logger zerolog.Logger) (*ColdStore, error) {
	if client == nil {
		return nil, errors.New("storage client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("cold store bucket name is required")
	}
	return &ColdStore{
		client: client,
		config: config,
		logger: logger.With().Str("component", "ColdStore").Logger(),
	}, nil
}

// Accept uploads one event. It satisfies the event API's Sink contract.
func (c *ColdStore) Accept(ctx context.Context, event *types.ScoutEvent) error {
	objectName := path.Join(c.config.ObjectPrefix, "events", event.User, fmt.Sprintf("%d.json.gz", event.ID))

	writer := c.client.Bucket(c.config.BucketName).Object(objectName).NewWriter(ctx)
	gz := gzip.NewWriter(writer)

	if err := json.NewEncoder(gz).Encode(event); err != nil {
		_ = gz.Close()
		_ = writer.Close()
		return fmt.Errorf("failed to encode event %d for cold store: %w", event.ID, err)
	}
	if err := gz.Close(); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to compress event %d for cold store: %w", event.ID, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload cold store object %s: %w", objectName, err)
	}

	c.logger.Debug().Str("object_name", objectName).Msg("Archived event to cold store.")
	return nil
}

package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// EventRow is the flattened analytics shape mirrored to BigQuery: event
// metadata only, without the raw row payloads (those live in the cold store).
type EventRow struct {
	ID        int64  `bigquery:"id"`
	User      string `bigquery:"user"`
	Name      string `bigquery:"name"`
	Date      string `bigquery:"event_date"`
	Location  string `bigquery:"location"`
	Scout     string `bigquery:"scout"`
	Count     int    `bigquery:"row_count"`
	DSP       bool   `bigquery:"dsp"`
	CreatedAt string `bigquery:"created_at"`
}

// RowBatchInserter abstracts the destination of a flushed batch.
type RowBatchInserter interface {
	InsertBatch(ctx context.Context, rows []*EventRow) error
	Close() error
}

// BigQueryMirrorConfig holds configuration for the BigQuery destination.
type BigQueryMirrorConfig struct {
	ProjectID       string
	DatasetID       string
	TableID         string
	CredentialsFile string
}

// NewBigQueryClient creates a BigQuery client, using Application Default
// Credentials unless a credentials file is configured.
func NewBigQueryClient(ctx context.Context, cfg *BigQueryMirrorConfig, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info().Str("credentials_file", cfg.CredentialsFile).Msg("Using specified credentials file for BigQuery client.")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return client, nil
}

// BigQueryRowInserter streams EventRow batches into one BigQuery table,
// creating the table from the inferred schema when it does not exist.
type BigQueryRowInserter struct {
	inserter *bigquery.Inserter
	logger   zerolog.Logger
}

// NewBigQueryRowInserter connects an inserter to the configured table.
func NewBigQueryRowInserter(ctx context.Context, client *bigquery.Client, cfg *BigQueryMirrorConfig, logger zerolog.Logger) (*BigQueryRowInserter, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	logger = logger.With().Str("component", "BigQueryRowInserter").Str("dataset_id", cfg.DatasetID).Str("table_id", cfg.TableID).Logger()

	tableRef := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	if _, err := tableRef.Metadata(ctx); err != nil {
		if !strings.Contains(err.Error(), "notFound") {
			return nil, fmt.Errorf("failed to get BigQuery table metadata: %w", err)
		}
		logger.Warn().Msg("BigQuery table not found. Creating with inferred schema.")
		schema, inferErr := bigquery.InferSchema(EventRow{})
		if inferErr != nil {
			return nil, fmt.Errorf("failed to infer event row schema: %w", inferErr)
		}
		if createErr := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: schema}); createErr != nil {
			return nil, fmt.Errorf("failed to create BigQuery table %s.%s: %w", cfg.DatasetID, cfg.TableID, createErr)
		}
	}

	return &BigQueryRowInserter{
		inserter: tableRef.Inserter(),
		logger:   logger,
	}, nil
}

// InsertBatch streams a batch of rows to BigQuery.
func (i *BigQueryRowInserter) InsertBatch(ctx context.Context, rows []*EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := i.inserter.Put(ctx, rows); err != nil {
		i.logger.Error().Err(err).Int("batch_size", len(rows)).Msg("Failed to insert rows into BigQuery.")
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				i.logger.Error().Int("row_index", rowErr.RowIndex).Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}
	return nil
}

// Close is a no-op; the BigQuery client's lifecycle is managed externally.
func (i *BigQueryRowInserter) Close() error {
	return nil
}

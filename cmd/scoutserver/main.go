// scoutserver hosts the remote event API: login, event sync and the static
// frontend, with optional Firestore persistence and archival sinks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/illmade-knight/go-scoutsync/pkg/archive"
	"github.com/illmade-knight/go-scoutsync/pkg/eventapi"
	"github.com/rs/zerolog"
)

type serverConfig struct {
	LogLevel  string `env:"SCOUT_LOG_LEVEL" envDefault:"info"`
	HTTPPort  string `env:"SCOUT_HTTP_PORT" envDefault:":8080"`
	StaticDir string `env:"SCOUT_STATIC_DIR" envDefault:"public"`

	JWTSecret  string `env:"SCOUT_JWT_SECRET,required"`
	RosterFile string `env:"SCOUT_ROSTER_FILE,required"`
	EventsFile string `env:"SCOUT_EVENTS_FILE" envDefault:"events.json"`

	// Firestore event persistence; the flat file is used when unset.
	ProjectID           string `env:"SCOUT_GCP_PROJECT_ID"`
	FirestoreCollection string `env:"SCOUT_FIRESTORE_COLLECTION"`

	// Optional BigQuery analytics mirror.
	BQDataset     string `env:"SCOUT_BQ_DATASET"`
	BQTable       string `env:"SCOUT_BQ_TABLE"`
	BQCredentials string `env:"SCOUT_BQ_CREDENTIALS_FILE"`

	// Optional GCS cold archive.
	ArchiveBucket string `env:"SCOUT_ARCHIVE_BUCKET"`
	ArchivePrefix string `env:"SCOUT_ARCHIVE_PREFIX" envDefault:"raw"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse environment configuration.")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roster, err := eventapi.LoadRoster(cfg.RosterFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load user roster.")
	}
	users, err := eventapi.NewUserStore(roster, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build user store.")
	}
	tokens, err := eventapi.NewTokenManager([]byte(cfg.JWTSecret), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build token manager.")
	}

	var events eventapi.EventStore
	if cfg.ProjectID != "" && cfg.FirestoreCollection != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Firestore client.")
		}
		defer func() { _ = fsClient.Close() }()
		events, err = eventapi.NewFirestoreEventStore(&eventapi.FirestoreEventStoreConfig{
			ProjectID:      cfg.ProjectID,
			CollectionName: cfg.FirestoreCollection,
		}, fsClient, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build Firestore event store.")
		}
	} else {
		events = eventapi.NewFileEventStore(cfg.EventsFile, logger)
	}

	var sinks []eventapi.Sink

	if cfg.BQDataset != "" && cfg.BQTable != "" {
		bqCfg := &archive.BigQueryMirrorConfig{
			ProjectID:       cfg.ProjectID,
			DatasetID:       cfg.BQDataset,
			TableID:         cfg.BQTable,
			CredentialsFile: cfg.BQCredentials,
		}
		bqClient, err := archive.NewBigQueryClient(ctx, bqCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create BigQuery client.")
		}
		defer func() { _ = bqClient.Close() }()
		inserter, err := archive.NewBigQueryRowInserter(ctx, bqClient, bqCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build BigQuery inserter.")
		}
		mirror := archive.NewBigQueryMirror(nil, inserter, logger)
		mirror.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = mirror.Stop(stopCtx)
		}()
		sinks = append(sinks, mirror)
	}

	if cfg.ArchiveBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Cloud Storage client.")
		}
		defer func() { _ = gcsClient.Close() }()
		coldStore, err := archive.NewColdStore(archive.NewStorageClientAdapter(gcsClient), archive.ColdStoreConfig{
			BucketName:   cfg.ArchiveBucket,
			ObjectPrefix: cfg.ArchivePrefix,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build cold store.")
		}
		sinks = append(sinks, coldStore)
	}

	api := eventapi.NewAPI(nil, users, tokens, events, sinks, logger)
	service := eventapi.NewService(&eventapi.ServiceConfig{
		HTTPPort:  cfg.HTTPPort,
		StaticDir: cfg.StaticDir,
	}, api, logger)

	if err := service.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start event API service.")
	}
	logger.Info().Str("port", service.GetHTTPPort()).Msg("Scout sync server running.")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly.")
	}
}

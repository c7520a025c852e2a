// scoutagent is the client-side offline layer as a local proxy: it installs
// the app-shell cache for one origin, answers classified requests through
// the interception worker, and exposes the hybrid store as a small local
// data API with hydration logging.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/caarlos0/env/v11"
	"github.com/illmade-knight/go-scoutsync/pkg/scoutstore"
	"github.com/illmade-knight/go-scoutsync/pkg/shellcache"
	"github.com/rs/zerolog"
)

type agentConfig struct {
	LogLevel   string `env:"SCOUT_LOG_LEVEL" envDefault:"info"`
	ListenAddr string `env:"SCOUT_AGENT_LISTEN" envDefault:":8090"`

	Origin       string `env:"SCOUT_ORIGIN,required"`
	CacheVersion string `env:"SCOUT_CACHE_VERSION" envDefault:"v12"`

	// Redis backs both the fast tier and the cache generations when set;
	// otherwise everything stays in memory.
	RedisAddr     string `env:"SCOUT_REDIS_ADDR"`
	RedisPassword string `env:"SCOUT_REDIS_PASSWORD"`
	RedisDB       int    `env:"SCOUT_REDIS_DB" envDefault:"0"`

	// Firestore backs the durable tier when set.
	ProjectID        string `env:"SCOUT_GCP_PROJECT_ID"`
	CollectionPrefix string `env:"SCOUT_FIRESTORE_PREFIX"`

	// Pub/Sub hydration broadcast, optional. The subscription replays
	// notifications published by other agents into the local listeners.
	HydrationTopic        string `env:"SCOUT_HYDRATION_TOPIC"`
	HydrationSubscription string `env:"SCOUT_HYDRATION_SUBSCRIPTION"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfg agentConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse environment configuration.")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var generations shellcache.GenerationStore
	var fast scoutstore.FastTier
	if cfg.RedisAddr != "" {
		redisGens, err := shellcache.NewRedisGenerations(ctx, &shellcache.RedisGenerationsConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect Redis generation store.")
		}
		defer func() { _ = redisGens.Close() }()
		generations = redisGens

		redisFast, err := scoutstore.NewRedisFastTier(ctx, &scoutstore.RedisFastTierConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect Redis fast tier.")
		}
		defer func() { _ = redisFast.Close() }()
		fast = redisFast
	} else {
		generations = shellcache.NewInMemoryGenerations()
		fast = scoutstore.NewInMemoryFastTier()
	}

	var durable scoutstore.DurableTier
	if cfg.ProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Firestore client.")
		}
		defer func() { _ = fsClient.Close() }()
		durable, err = scoutstore.NewFirestoreDurableTier(&scoutstore.FirestoreDurableTierConfig{
			ProjectID:        cfg.ProjectID,
			CollectionPrefix: cfg.CollectionPrefix,
		}, fsClient, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build Firestore durable tier.")
		}
	} else {
		durable = scoutstore.NewInMemoryDurableTier()
	}

	listeners := scoutstore.NewListenerSet()
	listeners.Subscribe(func(key string) {
		logger.Info().Str("key", key).Msg("Data hydrated from durable tier.")
	})
	notifier := scoutstore.Notifier(listeners)
	if cfg.HydrationTopic != "" && cfg.ProjectID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Pub/Sub client.")
		}
		defer func() { _ = psClient.Close() }()
		broadcast, err := scoutstore.NewPubSubNotifier(ctx, scoutstore.NewPubSubNotifierDefaults(cfg.HydrationTopic), psClient, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build Pub/Sub notifier.")
		}
		defer broadcast.Stop()
		notifier = scoutstore.MultiNotifier{listeners, broadcast}

		if cfg.HydrationSubscription != "" {
			relay, err := scoutstore.NewHydrationRelay(cfg.HydrationSubscription, psClient, listeners, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to build hydration relay.")
			}
			relay.Start(ctx)
			defer relay.Stop()
		}
	}

	store := scoutstore.NewStore(nil, fast, durable, notifier, logger)

	worker, err := shellcache.NewWorker(&shellcache.WorkerConfig{
		Version: cfg.CacheVersion,
		Origin:  cfg.Origin,
	}, generations, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build interception worker.")
	}
	if err := worker.Install(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to install app shell.")
	}
	if err := worker.Activate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to activate cache generation.")
	}

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid origin.")
	}
	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.Transport = worker

	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/{key}", dataRead(store))
	mux.HandleFunc("PUT /data/{key}", dataWrite(store))
	mux.Handle("/", proxy)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Agent server failed.")
		}
	}()
	logger.Info().Str("listen", cfg.ListenAddr).Str("origin", cfg.Origin).Msg("Scout agent running.")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// dataRead serves Store.Read. An optional fallback comes from the "fb" query
// parameter, defaulting to JSON null.
func dataRead(store *scoutstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fallback := json.RawMessage(`null`)
		if fb := r.URL.Query().Get("fb"); fb != "" && json.Valid([]byte(fb)) {
			fallback = json.RawMessage(fb)
		}
		value, _ := store.Read(r.PathValue("key"), fallback)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(value)
	}
}

// dataWrite serves Store.Write with the raw JSON body as the value.
func dataWrite(store *scoutstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil || !json.Valid(body) {
			http.Error(w, `{"message":"body must be JSON"}`, http.StatusBadRequest)
			return
		}
		store.Write(r.PathValue("key"), json.RawMessage(strings.TrimSpace(string(body))))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

package scoutstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// StoreConfig holds configuration for the hybrid Store.
type StoreConfig struct {
	// DurableTimeout bounds each background durable-tier operation.
	DurableTimeout time.Duration
}

// NewStoreDefaults provides a config with sensible defaults.
func NewStoreDefaults() *StoreConfig {
	return &StoreConfig{
		DurableTimeout: 10 * time.Second,
	}
}

// Store reconciles the synchronous fast tier with the asynchronous durable
// tier. Reads and writes return immediately; the durable tier is updated by
// fire-and-forget background tasks, so it is only ever eventually consistent
// with the fast tier. The fast tier is authoritative for interactive use.
type Store struct {
	fast           FastTier
	durable        DurableTier
	notifier       Notifier
	durableTimeout time.Duration
	logger         zerolog.Logger
}

// NewStore creates a hybrid Store over the given tiers. A nil notifier
// disables hydration notifications.
func NewStore(cfg *StoreConfig, fast FastTier, durable DurableTier, notifier Notifier, logger zerolog.Logger) *Store {
	if cfg == nil {
		cfg = NewStoreDefaults()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Store{
		fast:           fast,
		durable:        durable,
		notifier:       notifier,
		durableTimeout: cfg.DurableTimeout,
		logger:         logger.With().Str("component", "Store").Logger(),
	}
}

// settled is reused for operations whose background tail finished before return.
var settled = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Read returns the fast-tier value for key, or fallback when the fast tier
// has no usable value. It never blocks on the durable tier: when the fast
// tier misses, a background task checks the durable tier and, on a hit,
// repairs the fast tier and notifies the hydration listeners for key.
//
// The returned channel closes once the background task settles; callers that
// do not need deterministic settlement can ignore it.
func (s *Store) Read(key string, fallback json.RawMessage) (json.RawMessage, <-chan struct{}) {
	if raw, ok := s.fast.Get(key); ok {
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw), settled
		}
		// A corrupt entry is treated as absence; the durable tier may still
		// hold a good copy.
		s.logger.Warn().Str("key", key).Msg("Fast-tier value failed to parse; falling back.")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), s.durableTimeout)
		defer cancel()

		value, err := s.durable.Get(ctx, CollectionForKey(key), key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.Debug().Err(err).Str("key", key).Msg("Durable-tier read failed; fast tier not repaired.")
			}
			return
		}
		if err := s.fast.Set(key, string(value)); err != nil {
			s.logger.Debug().Err(err).Str("key", key).Msg("Failed to repair fast tier from durable record.")
			return
		}
		s.notifier.Notify(key)
	}()

	return fallback, done
}

// Write serializes value and stores it in the fast tier, then persists it to
// the routed durable collection in the background. Failures in either tier
// are swallowed: fast-tier loss degrades nothing durable, durable-tier loss
// degrades resilience but not the current session.
//
// The returned channel closes once the durable write settles.
func (s *Store) Write(key string, value any) <-chan struct{} {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Value is not JSON-serializable; write dropped.")
		return settled
	}

	if err := s.fast.Set(key, string(raw)); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Fast-tier write failed; durable write still scheduled.")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), s.durableTimeout)
		defer cancel()

		if err := s.durable.Put(ctx, CollectionForKey(key), key, raw); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Durable-tier write failed; record held only in fast tier.")
		}
	}()

	return done
}

package scoutstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// hydrationMessage is the wire shape of a broadcast hydration notification.
type hydrationMessage struct {
	Key string `json:"key"`
}

// PubSubNotifierConfig holds configuration for the Pub/Sub hydration notifier.
type PubSubNotifierConfig struct {
	TopicID            string
	TopicExistsTimeout time.Duration
	PublishTimeout     time.Duration
}

// NewPubSubNotifierDefaults provides a config with sensible defaults.
func NewPubSubNotifierDefaults(topicID string) *PubSubNotifierConfig {
	return &PubSubNotifierConfig{
		TopicID:            topicID,
		TopicExistsTimeout: 15 * time.Second,
		PublishTimeout:     10 * time.Second,
	}
}

// PubSubNotifier broadcasts hydration keys on a Pub/Sub topic so other
// processes (or tabs, in the original deployment) can react to data becoming
// available. Publishing is fire-and-forget to preserve the Notify contract.
type PubSubNotifier struct {
	topic          *pubsub.Topic
	logger         zerolog.Logger
	publishTimeout time.Duration
	wg             sync.WaitGroup
}

// NewPubSubNotifier creates a new PubSubNotifier. It validates the topic's
// existence before returning a functional notifier.
func NewPubSubNotifier(ctx context.Context, cfg *PubSubNotifierConfig, client *pubsub.Client, logger zerolog.Logger) (*PubSubNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil for notifier")
	}

	topic := client.Topic(cfg.TopicID)

	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	logger.Info().Str("topic_id", cfg.TopicID).Msg("PubSubNotifier initialized successfully.")
	return &PubSubNotifier{
		topic:          topic,
		logger:         logger.With().Str("component", "PubSubNotifier").Str("topic_id", cfg.TopicID).Logger(),
		publishTimeout: cfg.PublishTimeout,
	}, nil
}

// Notify publishes key on the topic in the background. Publish failures are
// logged and swallowed; hydration notifications are best-effort.
func (n *PubSubNotifier) Notify(key string) {
	payload, err := json.Marshal(hydrationMessage{Key: key})
	if err != nil {
		n.logger.Error().Err(err).Str("key", key).Msg("Failed to marshal hydration message.")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.publishTimeout)
		defer cancel()
		result := n.topic.Publish(ctx, &pubsub.Message{Data: payload})
		if _, err := result.Get(ctx); err != nil {
			n.logger.Warn().Err(err).Str("key", key).Msg("Failed to publish hydration notification.")
		}
	}()
}

// Stop flushes pending publishes and stops the topic's background goroutines.
func (n *PubSubNotifier) Stop() {
	n.wg.Wait()
	n.topic.Stop()
}

// HydrationRelay consumes broadcast hydration notifications from a Pub/Sub
// subscription and replays them into a local Notifier, typically a ListenerSet.
type HydrationRelay struct {
	subscription *pubsub.Subscription
	target       Notifier
	logger       zerolog.Logger
	wg           sync.WaitGroup
}

// NewHydrationRelay creates a relay from subscriptionID to target.
func NewHydrationRelay(subscriptionID string, client *pubsub.Client, target Notifier, logger zerolog.Logger) (*HydrationRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil for relay")
	}
	if target == nil {
		return nil, fmt.Errorf("relay target notifier cannot be nil")
	}
	return &HydrationRelay{
		subscription: client.Subscription(subscriptionID),
		target:       target,
		logger:       logger.With().Str("component", "HydrationRelay").Str("subscription_id", subscriptionID).Logger(),
	}, nil
}

// Start begins receiving in a background goroutine until ctx is cancelled.
func (r *HydrationRelay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			var hm hydrationMessage
			if err := json.Unmarshal(msg.Data, &hm); err != nil || hm.Key == "" {
				r.logger.Warn().Err(err).Msg("Discarding malformed hydration notification.")
				msg.Ack()
				return
			}
			r.target.Notify(hm.Key)
			msg.Ack()
		})
		if err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Hydration relay receive loop terminated.")
		}
	}()
}

// Stop waits for the receive loop to wind down after its context is cancelled.
func (r *HydrationRelay) Stop() {
	r.wg.Wait()
}

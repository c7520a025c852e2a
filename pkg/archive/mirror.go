package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
)

// MirrorConfig holds configuration for the batching mirror.
type MirrorConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	InsertTimeout time.Duration
}

// NewMirrorDefaults provides a config with sensible defaults.
func NewMirrorDefaults() *MirrorConfig {
	return &MirrorConfig{
		BatchSize:     50,
		FlushInterval: 30 * time.Second,
		InsertTimeout: 2 * time.Minute,
	}
}

// BigQueryMirror batches accepted events and flushes them to a
// RowBatchInserter on size or interval. It satisfies the event API's Sink
// contract; a full buffer rejects the event rather than blocking the API.
type BigQueryMirror struct {
	config    *MirrorConfig
	inserter  RowBatchInserter
	logger    zerolog.Logger
	inputChan chan *EventRow
	wg        sync.WaitGroup
}

// NewBigQueryMirror creates a mirror in front of inserter. Call Start before
// feeding it events.
func NewBigQueryMirror(config *MirrorConfig, inserter RowBatchInserter, logger zerolog.Logger) *BigQueryMirror {
	if config == nil {
		config = NewMirrorDefaults()
	}
	return &BigQueryMirror{
		config:    config,
		inserter:  inserter,
		logger:    logger.With().Str("component", "BigQueryMirror").Logger(),
		inputChan: make(chan *EventRow, config.BatchSize*2),
	}
}

// Accept queues one event for mirroring. It satisfies the Sink contract.
func (m *BigQueryMirror) Accept(_ context.Context, event *types.ScoutEvent) error {
	row := &EventRow{
		ID:        event.ID,
		User:      event.User,
		Name:      event.Name,
		Date:      event.Date,
		Location:  event.Location,
		Scout:     event.Scout,
		Count:     event.Count,
		DSP:       event.DSP,
		CreatedAt: event.CreatedAt.Format(time.RFC3339),
	}
	select {
	case m.inputChan <- row:
		return nil
	default:
		return fmt.Errorf("mirror buffer full; dropping event %d", event.ID)
	}
}

// Start begins the batching worker.
func (m *BigQueryMirror) Start(ctx context.Context) {
	m.logger.Info().Int("batch_size", m.config.BatchSize).Dur("flush_interval", m.config.FlushInterval).Msg("Starting BigQuery mirror worker...")
	m.wg.Add(1)
	go m.worker(ctx)
}

// Stop flushes buffered rows and shuts the worker down, respecting ctx's
// deadline.
func (m *BigQueryMirror) Stop(ctx context.Context) error {
	m.logger.Info().Msg("Stopping BigQuery mirror...")
	close(m.inputChan)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for mirror worker to stop.")
		return ctx.Err()
	}

	if err := m.inserter.Close(); err != nil {
		m.logger.Error().Err(err).Msg("Error closing row inserter.")
	}
	m.logger.Info().Msg("BigQuery mirror stopped.")
	return nil
}

// worker collects rows into a batch and flushes on size or interval.
func (m *BigQueryMirror) worker(ctx context.Context) {
	defer m.wg.Done()
	batch := make([]*EventRow, 0, m.config.BatchSize)
	ticker := time.NewTicker(m.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutdown: flush what remains under a fresh context.
			m.flush(context.Background(), batch)
			return

		case row, ok := <-m.inputChan:
			if !ok {
				m.flush(context.Background(), batch)
				return
			}
			batch = append(batch, row)
			if len(batch) >= m.config.BatchSize {
				m.flush(ctx, batch)
				batch = make([]*EventRow, 0, m.config.BatchSize)
				ticker.Reset(m.config.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				m.flush(ctx, batch)
				batch = make([]*EventRow, 0, m.config.BatchSize)
			}
		}
	}
}

func (m *BigQueryMirror) flush(ctx context.Context, batch []*EventRow) {
	if len(batch) == 0 {
		return
	}
	insertCtx, cancel := context.WithTimeout(ctx, m.config.InsertTimeout)
	defer cancel()

	if err := m.inserter.InsertBatch(insertCtx, batch); err != nil {
		m.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to flush mirror batch.")
		return
	}
	m.logger.Debug().Int("batch_size", len(batch)).Msg("Flushed mirror batch.")
}

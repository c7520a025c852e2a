package archive_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-scoutsync/pkg/archive"
	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockInserter records every flushed batch.
type mockInserter struct {
	mu      sync.Mutex
	batches [][]*archive.EventRow
	err     error
}

func (m *mockInserter) InsertBatch(_ context.Context, rows []*archive.EventRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	batch := make([]*archive.EventRow, len(rows))
	copy(batch, rows)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockInserter) Close() error { return nil }

func (m *mockInserter) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, b := range m.batches {
		total += len(b)
	}
	return total
}

func (m *mockInserter) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func mirrorEvent(id int64) *types.ScoutEvent {
	return &types.ScoutEvent{
		ID:        id,
		User:      "faffanis",
		Name:      "Showcase",
		Date:      "2026-03-14",
		Count:     1,
		Rows:      []json.RawMessage{json.RawMessage(`{}`)},
		CreatedAt: time.Now().UTC(),
	}
}

func TestBigQueryMirror(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("Flushes when the batch fills", func(t *testing.T) {
		// Arrange
		inserter := &mockInserter{}
		mirror := archive.NewBigQueryMirror(&archive.MirrorConfig{
			BatchSize:     2,
			FlushInterval: time.Hour,
			InsertTimeout: time.Second,
		}, inserter, logger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mirror.Start(ctx)

		// Act
		require.NoError(t, mirror.Accept(ctx, mirrorEvent(1)))
		require.NoError(t, mirror.Accept(ctx, mirrorEvent(2)))

		// Assert
		assert.Eventually(t, func() bool { return inserter.batchCount() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, 2, inserter.rowCount())
	})

	t.Run("Stop flushes a partial batch", func(t *testing.T) {
		// Arrange
		inserter := &mockInserter{}
		mirror := archive.NewBigQueryMirror(&archive.MirrorConfig{
			BatchSize:     10,
			FlushInterval: time.Hour,
			InsertTimeout: time.Second,
		}, inserter, logger)
		ctx := context.Background()
		mirror.Start(ctx)
		require.NoError(t, mirror.Accept(ctx, mirrorEvent(1)))

		// Act
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, mirror.Stop(stopCtx))

		// Assert
		assert.Equal(t, 1, inserter.rowCount())
	})

	t.Run("Flushes on the interval", func(t *testing.T) {
		// Arrange
		inserter := &mockInserter{}
		mirror := archive.NewBigQueryMirror(&archive.MirrorConfig{
			BatchSize:     10,
			FlushInterval: 20 * time.Millisecond,
			InsertTimeout: time.Second,
		}, inserter, logger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mirror.Start(ctx)

		// Act
		require.NoError(t, mirror.Accept(ctx, mirrorEvent(1)))

		// Assert
		assert.Eventually(t, func() bool { return inserter.rowCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Insert failure is contained", func(t *testing.T) {
		// Arrange
		inserter := &mockInserter{err: errors.New("bigquery down")}
		mirror := archive.NewBigQueryMirror(&archive.MirrorConfig{
			BatchSize:     1,
			FlushInterval: time.Hour,
			InsertTimeout: time.Second,
		}, inserter, logger)
		ctx := context.Background()
		mirror.Start(ctx)

		// Act: the failed flush must not wedge the worker.
		require.NoError(t, mirror.Accept(ctx, mirrorEvent(1)))
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		// Assert
		assert.NoError(t, mirror.Stop(stopCtx))
	})
}

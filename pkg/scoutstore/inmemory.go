package scoutstore

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryFastTier is a thread-safe, in-memory FastTier implementation.
type InMemoryFastTier struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewInMemoryFastTier creates an empty in-memory fast tier.
func NewInMemoryFastTier() *InMemoryFastTier {
	return &InMemoryFastTier{
		data: make(map[string]string),
	}
}

// Get returns the stored JSON string for key, or false on a miss.
func (t *InMemoryFastTier) Get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	raw, ok := t.data[key]
	return raw, ok
}

// Set stores a JSON string under key.
func (t *InMemoryFastTier) Set(key string, raw string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[key] = raw
	return nil
}

// Delete removes a key. Tests use this to simulate cleared fast storage.
func (t *InMemoryFastTier) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key)
}

// InMemoryDurableTier is a thread-safe, in-memory DurableTier implementation.
// The routing collections are created up front, mirroring the idempotent
// schema setup a real durable store performs on open.
type InMemoryDurableTier struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewInMemoryDurableTier creates an in-memory durable tier with the standard
// routing collections pre-created.
func NewInMemoryDurableTier() *InMemoryDurableTier {
	collections := make(map[string]map[string]json.RawMessage, len(Collections))
	for _, name := range Collections {
		collections[name] = make(map[string]json.RawMessage)
	}
	return &InMemoryDurableTier{collections: collections}
}

// Get retrieves the value for key in collection.
func (t *InMemoryDurableTier) Get(_ context.Context, collection string, key string) (json.RawMessage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	records, ok := t.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores the value for key in collection, creating the collection if needed.
func (t *InMemoryDurableTier) Put(_ context.Context, collection string, key string, value json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	records, ok := t.collections[collection]
	if !ok {
		records = make(map[string]json.RawMessage)
		t.collections[collection] = records
	}
	records[key] = append(json.RawMessage(nil), value...)
	return nil
}

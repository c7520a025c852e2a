package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrNoSnapshot is returned by Match when a generation holds no snapshot for
// the request key.
var ErrNoSnapshot = errors.New("no snapshot for request key")

// GenerationStore manages versioned, named buckets of cached responses. At
// most one generation is active at a time; stale generations are deleted
// wholesale at activation, never updated in place.
type GenerationStore interface {
	// Put stores a snapshot under key in the generation tagged version,
	// creating the generation if needed.
	Put(ctx context.Context, version string, key string, snapshot Snapshot) error
	// Match returns the snapshot stored under key in the generation tagged
	// version, or ErrNoSnapshot.
	Match(ctx context.Context, version string, key string) (Snapshot, error)
	// Versions lists the version tags of every existing generation.
	Versions(ctx context.Context) ([]string, error)
	// Delete removes an entire generation. Deleting an absent generation is a no-op.
	Delete(ctx context.Context, version string) error
}

// RequestKey derives the cache key for a request from its method and URL.
// Fragments never reach the server and are excluded.
func RequestKey(r *http.Request) string {
	u := *r.URL
	u.Fragment = ""
	return r.Method + " " + u.String()
}

// InMemoryGenerations is a thread-safe, in-memory GenerationStore.
type InMemoryGenerations struct {
	mu   sync.RWMutex
	gens map[string]map[string]Snapshot
}

// NewInMemoryGenerations creates an empty in-memory generation store.
func NewInMemoryGenerations() *InMemoryGenerations {
	return &InMemoryGenerations{
		gens: make(map[string]map[string]Snapshot),
	}
}

// Put stores a snapshot under key in the generation tagged version.
func (g *InMemoryGenerations) Put(_ context.Context, version string, key string, snapshot Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gen, ok := g.gens[version]
	if !ok {
		gen = make(map[string]Snapshot)
		g.gens[version] = gen
	}
	gen[key] = append(Snapshot(nil), snapshot...)
	return nil
}

// Match returns the snapshot stored under key, or ErrNoSnapshot.
func (g *InMemoryGenerations) Match(_ context.Context, version string, key string) (Snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gen, ok := g.gens[version]
	if !ok {
		return nil, ErrNoSnapshot
	}
	snapshot, ok := gen[key]
	if !ok {
		return nil, fmt.Errorf("generation %s: %w", version, ErrNoSnapshot)
	}
	return snapshot, nil
}

// Versions lists the version tags of every existing generation.
func (g *InMemoryGenerations) Versions(_ context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	versions := make([]string, 0, len(g.gens))
	for version := range g.gens {
		versions = append(versions, version)
	}
	return versions, nil
}

// Delete removes an entire generation.
func (g *InMemoryGenerations) Delete(_ context.Context, version string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.gens, version)
	return nil
}

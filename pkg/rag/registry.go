package rag

import (
	"context"
	"sync"
)

// Registry tracks one Store per job. Build is idempotent: concurrent
// builders for the same job observe the same final store. Stores never
// cross job boundaries.
type Registry struct {
	mu       sync.Mutex
	embedder Embedder
	stores   map[string]*Store
}

// NewRegistry creates a registry. A nil embedder makes every store degraded
// from the start (keyword retrieval only).
func NewRegistry(embedder Embedder) *Registry {
	return &Registry{
		embedder: embedder,
		stores:   make(map[string]*Store),
	}
}

// Build creates the job's store seeded with seedText, or returns the
// existing one. The seed is only indexed by the first caller.
func (r *Registry) Build(ctx context.Context, jobID, seedText string) (*Store, error) {
	r.mu.Lock()
	store, exists := r.stores[jobID]
	if !exists {
		store = NewStore(r.embedder)
		r.stores[jobID] = store
	}
	r.mu.Unlock()

	if exists {
		return store, nil
	}
	if err := store.Add(ctx, seedText); err != nil {
		return store, err
	}
	return store, nil
}

// Get returns the job's store, if built.
func (r *Registry) Get(jobID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[jobID]
	return store, ok
}

// Drop releases the job's store at job end.
func (r *Registry) Drop(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, jobID)
}

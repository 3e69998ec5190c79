package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
)

// ContextKey returns the persisted-state key for a job's EnrichedContext.
func ContextKey(jobID string) string { return "enriched_context/" + jobID }

// ContextSidecar persists the per-job EnrichedContext snapshot and reloads
// it on demand (RAG reconstruction). Reload failures are surfaced so the
// caller can fall back to its in-memory copy.
type ContextSidecar struct {
	store Store
}

// NewContextSidecar wraps a Store.
func NewContextSidecar(s Store) *ContextSidecar {
	return &ContextSidecar{store: s}
}

// Save writes the snapshot as UTF-8 JSON under the job-scoped key.
func (c *ContextSidecar) Save(ctx context.Context, ec models.EnrichedContext) error {
	blob, err := json.Marshal(ec)
	if err != nil {
		return fmt.Errorf("failed to encode enriched context: %w", err)
	}
	if err := c.store.Put(ctx, ContextKey(ec.JobID), blob); err != nil {
		return fmt.Errorf("failed to persist enriched context for job %s: %w", ec.JobID, err)
	}
	return nil
}

// Load reloads the snapshot for a job. Returns ErrNotFound (wrapped) when
// the job has no snapshot.
func (c *ContextSidecar) Load(ctx context.Context, jobID string) (*models.EnrichedContext, error) {
	blob, err := c.store.Get(ctx, ContextKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to load enriched context for job %s: %w", jobID, err)
	}
	var ec models.EnrichedContext
	if err := json.Unmarshal(blob, &ec); err != nil {
		return nil, fmt.Errorf("failed to decode enriched context for job %s: %w", jobID, err)
	}
	return &ec, nil
}

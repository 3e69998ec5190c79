package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nellia-dev/prospector/pkg/models"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":1}`)))
	blob, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), blob)

	// Overwrite wins.
	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":2}`)))
	blob, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), blob)
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	src := []byte("original")
	require.NoError(t, s.Put(ctx, "k", src))
	src[0] = 'X'

	blob, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), blob)

	blob[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestRedisStorePutGet(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte("payload")))
	blob, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), blob)

	// The TTL was applied.
	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContextSidecarRoundTrip(t *testing.T) {
	sidecar := NewContextSidecar(NewMemoryStore())
	ctx := context.Background()

	ec := models.EnrichedContext{
		JobID:  "job-42",
		UserID: "user-7",
		Business: models.BusinessContext{
			ProductServiceDescription: "AI sales automation",
			IndustryFocus:             []string{"SaaS"},
			IdealCustomer:             "mid-market B2B",
			PainPoints:                []string{"slow lead research"},
		},
		SearchQuery: "saas sales automation leads",
		CreatedAt:   "2026-08-24T10:00:00Z",
	}
	require.NoError(t, sidecar.Save(ctx, ec))

	got, err := sidecar.Load(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, ec, *got)
}

func TestContextSidecarLoadMissing(t *testing.T) {
	sidecar := NewContextSidecar(NewMemoryStore())
	_, err := sidecar.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContextKey(t *testing.T) {
	assert.Equal(t, "enriched_context/job-1", ContextKey("job-1"))
}

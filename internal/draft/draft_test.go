package draft

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/dealplanner/internal/planner"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "dealplanner.draft.v2", ttl, zerolog.Nop()), mr
}

func TestLoadWithoutDraft(t *testing.T) {
	s, _ := newTestStore(t, 0)
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrNoDraft)
}

func TestPlannerPersistsIntoDraft(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	p := planner.New(planner.Options{Logger: zerolog.Nop(), Persister: s})

	id := p.CreateBundle()
	p.UpdateBundleField(id, planner.GroupPricing, planner.Patch{"rrp": 99.0})

	require.True(t, mr.Exists("dealplanner.draft.v2"))
	require.Equal(t, time.Hour, mr.TTL("dealplanner.draft.v2"))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{id}, snap.Products.AllIDs)
	require.InDelta(t, 99.0, snap.Products.ByID[id].Pricing.RRP, 1e-9)

	restored := planner.New(planner.Options{Logger: zerolog.Nop()})
	restored.Restore(snap)
	want, _ := p.Bundle(id)
	got, ok := restored.Bundle(id)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestClear(t *testing.T) {
	s, mr := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, planner.Snapshot{}))
	require.True(t, mr.Exists("dealplanner.draft.v2"))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoDraft)
}

func TestLoadMalformedDraft(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, mr.Set("dealplanner.draft.v2", "{not json"))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoDraft)
}

func TestPersistLogsFailures(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	s := New(client, "dealplanner.draft.v2", 0, zerolog.Nop())

	require.NotPanics(t, func() { s.Persist(planner.Snapshot{}) })
}

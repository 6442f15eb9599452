// Package draft keeps the working deal in a single Redis key so that it
// survives restarts.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Simplici0/dealplanner/internal/planner"
)

// ErrNoDraft is returned by Load when no draft is stored.
var ErrNoDraft = errors.New("no draft stored")

const persistTimeout = 2 * time.Second

// Store reads and writes the working draft. It satisfies planner.Persister.
type Store struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

// New constructs a draft store. A ttl of zero keeps the draft forever.
func New(client *redis.Client, key string, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{client: client, key: key, ttl: ttl, log: log}
}

// Save stores snap as the current draft.
func (s *Store) Save(ctx context.Context, snap planner.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

// Load returns the current draft.
func (s *Store) Load(ctx context.Context) (planner.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return planner.Snapshot{}, ErrNoDraft
	}
	if err != nil {
		return planner.Snapshot{}, fmt.Errorf("read draft: %w", err)
	}
	snap, err := planner.DecodeSnapshot(data)
	if err != nil {
		return planner.Snapshot{}, err
	}
	return snap, nil
}

// Clear removes the draft. Clearing a missing draft is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// Persist saves snap, logging instead of returning failures.
func (s *Store) Persist(snap planner.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.Save(ctx, snap); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("persist draft")
	}
}

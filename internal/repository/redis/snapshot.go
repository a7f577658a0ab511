package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// SnapshotStore implements repository.SnapshotRepository using Redis.
type SnapshotStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSnapshotStore creates a Redis-backed cart snapshot store. A zero ttl keeps
// snapshots until they are overwritten or deleted.
func NewSnapshotStore(client redis.Cmdable, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// Get reads and decodes the snapshot stored under key.
func (s *SnapshotStore) Get(ctx context.Context, key string) ([]domain.CartItem, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("cart snapshot", key)
		}
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	return repository.DecodeSnapshot(data)
}

// Save writes the full snapshot under key, refreshing its TTL.
func (s *SnapshotStore) Save(ctx context.Context, key string, items []domain.CartItem) error {
	data, err := repository.EncodeSnapshot(items)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot stored under key.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del snapshot: %w", err)
	}
	return nil
}

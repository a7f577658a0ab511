// Package memory provides in-process repository implementations for single-node
// deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// SnapshotStore keeps serialized cart snapshots in memory. Snapshots are stored
// encoded so a load goes through the same decoding as the Redis store.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string][]byte)}
}

func (s *SnapshotStore) Get(_ context.Context, key string) ([]domain.CartItem, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("cart snapshot", key)
	}
	return repository.DecodeSnapshot(raw)
}

func (s *SnapshotStore) Save(_ context.Context, key string, items []domain.CartItem) error {
	raw, err := repository.EncodeSnapshot(items)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// PutRaw stores raw bytes under key without validation.
func (s *SnapshotStore) PutRaw(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), raw...)
	s.mu.Unlock()
}

// Raw returns the bytes stored under key.
func (s *SnapshotStore) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	return append([]byte(nil), raw...), ok
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// AttemptStore is an in-memory checkout attempt ledger.
type AttemptStore struct {
	mu    sync.Mutex
	byKey map[string]domain.CheckoutAttempt
}

// NewAttemptStore creates an empty in-memory attempt ledger.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{byKey: make(map[string]domain.CheckoutAttempt)}
}

// FindOpen returns the most recently updated open attempt matching sessionID and fingerprint.
func (s *AttemptStore) FindOpen(_ context.Context, sessionID, fingerprint string) (*domain.CheckoutAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *domain.CheckoutAttempt
	for _, a := range s.byKey {
		if a.SessionID != sessionID || a.Fingerprint != fingerprint || !a.IsOpen() {
			continue
		}
		if found == nil || a.UpdatedAt.After(found.UpdatedAt) {
			cp := a
			found = &cp
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

// Save upserts the attempt by idempotency key. The payment sequence never
// moves backwards.
func (s *AttemptStore) Save(_ context.Context, attempt *domain.CheckoutAttempt) error {
	if attempt.IdempotencyKey == "" {
		return apperrors.InvalidInput("attempt idempotency key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.byKey[attempt.IdempotencyKey]; ok {
		attempt.CreatedAt = existing.CreatedAt
		attempt.PaymentSeq = max(attempt.PaymentSeq, existing.PaymentSeq)
	} else if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	s.byKey[attempt.IdempotencyKey] = *attempt
	return nil
}

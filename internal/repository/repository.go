package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
)

// ErrCorruptSnapshot is returned when a stored cart snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// SnapshotRepository persists the serialized cart of one storefront session
// under a single namespaced key.
type SnapshotRepository interface {
	// Get returns the stored items for key. A missing key yields apperrors.ErrNotFound;
	// an undecodable value yields ErrCorruptSnapshot.
	Get(ctx context.Context, key string) ([]domain.CartItem, error)

	// Save overwrites the snapshot stored under key.
	Save(ctx context.Context, key string, items []domain.CartItem) error

	// Delete removes the snapshot stored under key.
	Delete(ctx context.Context, key string) error
}

// AttemptRepository is the checkout attempt ledger used to prevent duplicate orders.
type AttemptRepository interface {
	// FindOpen returns the open attempt for sessionID with the given submission
	// fingerprint, or apperrors.ErrNotFound.
	FindOpen(ctx context.Context, sessionID, fingerprint string) (*domain.CheckoutAttempt, error)

	// Save inserts or updates the attempt identified by its idempotency key.
	Save(ctx context.Context, attempt *domain.CheckoutAttempt) error
}

// EncodeSnapshot serializes items as a JSON array. A nil slice encodes as [].
func EncodeSnapshot(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a JSON array of cart items. Entries without an id or with
// a non-positive quantity are dropped, and only the first entry per id is kept.
func DecodeSnapshot(data []byte) ([]domain.CartItem, error) {
	var raw []domain.CartItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	items := make([]domain.CartItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		item.Quantity = item.CapToStock(item.Quantity)
		if item.Quantity <= 0 {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

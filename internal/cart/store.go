// Package cart owns a storefront session's shopping cart: its ordered item
// collection, the snapshot persisted after every mutation, and the change
// notifications other components subscribe to.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/pricing"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/validator"
)

// DefaultNamespace prefixes every persisted cart snapshot key.
const DefaultNamespace = "gems:cart"

var errSnapshotNotRestored = errors.New("snapshot not restored")

// Key returns the snapshot key for a session.
func Key(namespace, sessionID string) string {
	return namespace + ":" + sessionID
}

// EventPublisher receives cart change notifications. *event.Producer satisfies it.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID string, items []domain.CartItem, summary domain.CartSummary) error
	PublishCartCleared(ctx context.Context, sessionID string) error
}

// Listener is called after every change to the cart with a copy of its items.
type Listener func(ctx context.Context, items []domain.CartItem)

// Change describes the result of a quantity-changing operation.
type Change struct {
	Item domain.CartItem `json:"item"`
	// Clamped is set when the requested quantity exceeded the stock ceiling.
	Clamped bool `json:"clamped"`
	// Removed is set when the operation deleted the item.
	Removed bool `json:"removed"`
}

// Config holds the per-store settings.
type Config struct {
	Namespace string
	Policy    pricing.Policy
}

// Store holds one session's cart. All methods are safe for concurrent use;
// every mutation persists the full snapshot before returning.
type Store struct {
	mu        sync.Mutex
	sessionID string
	key       string
	policy    pricing.Policy
	repo      repository.SnapshotRepository
	events    EventPublisher
	logger    *slog.Logger

	items []domain.CartItem
	index map[string]int
	// unrestored is set while the last Load failed on storage. Writes are
	// refused until a Load succeeds so the durable snapshot is not overwritten.
	unrestored bool

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewStore creates an empty store for sessionID. Call Load to restore the
// persisted snapshot. events may be nil.
func NewStore(sessionID string, cfg Config, repo repository.SnapshotRepository, events EventPublisher, logger *slog.Logger) *Store {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &Store{
		sessionID: sessionID,
		key:       Key(cfg.Namespace, sessionID),
		policy:    cfg.Policy,
		repo:      repo,
		events:    events,
		logger:    logger.With(slog.String("session_id", sessionID)),
		index:     make(map[string]int),
	}
}

// SessionID returns the session the store belongs to.
func (s *Store) SessionID() string { return s.sessionID }

// Load replaces the in-memory cart with the persisted snapshot. A missing or
// corrupt snapshot yields an empty cart and no error. Other storage failures
// are returned and leave the store unrestored: mutations still apply in
// memory but are not persisted until a later Load succeeds.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.repo.Get(ctx, s.key)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.replace(items)
		s.logger.DebugContext(ctx, "cart restored", slog.Int("lines", len(s.items)))
	case errors.Is(err, apperrors.ErrNotFound):
		s.replace(nil)
	case errors.Is(err, repository.ErrCorruptSnapshot):
		s.logger.WarnContext(ctx, "corrupt cart snapshot, starting with an empty cart",
			slog.String("error", err.Error()),
		)
		s.replace(nil)
	default:
		s.unrestored = true
		return apperrors.Persistence("load cart snapshot", err)
	}
	s.unrestored = false
	return nil
}

// Restored reports whether the store holds the persisted snapshot, or was
// never asked to load one.
func (s *Store) Restored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unrestored
}

// AddItem snapshots product into the cart, or increases the quantity of the
// existing line with the same id. The product's catalog fields are captured
// only when the line is first created.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) (Change, error) {
	if err := validator.Validate(product); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			field, msg := ve.First()
			return Change{}, apperrors.Validation(field, msg)
		}
		return Change{}, err
	}
	if quantity <= 0 {
		return Change{}, apperrors.Validation("quantity", "must be greater than 0")
	}
	if !product.IsAvailable() {
		return Change{}, apperrors.Validation("availability", "product is not available")
	}

	s.mu.Lock()

	var item domain.CartItem
	if i, ok := s.index[product.ID]; ok {
		item = s.items[i]
		item.Quantity += quantity
	} else {
		item = domain.NewCartItem(product, quantity)
	}

	capped := item.CapToStock(item.Quantity)
	if capped <= 0 {
		s.mu.Unlock()
		return Change{}, apperrors.Validation("stock", "product is out of stock")
	}
	change := Change{Clamped: capped < item.Quantity}
	item.Quantity = capped
	s.upsert(item)
	change.Item = item.Clone()

	err := s.persist(ctx)
	items := s.snapshot()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("product_id", product.ID),
		slog.Int("quantity", quantity),
		slog.Bool("clamped", change.Clamped),
	)
	s.changed(ctx, items)
	return change, err
}

// RemoveItem deletes the line with id. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	_, _, err := s.removeItem(ctx, id)
	return err
}

func (s *Store) removeItem(ctx context.Context, id string) (domain.CartItem, bool, error) {
	s.mu.Lock()
	item, ok := s.lookup(id)
	if !ok {
		s.mu.Unlock()
		return domain.CartItem{}, false, nil
	}
	s.remove(id)
	err := s.persist(ctx)
	items := s.snapshot()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item removed from cart", slog.String("product_id", id))
	s.changed(ctx, items)
	return item, true, err
}

// UpdateQuantity sets the quantity of the line with id. A quantity of zero or
// less removes the line; a quantity above the known stock is clamped to it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) (Change, error) {
	if quantity <= 0 {
		item, removed, err := s.removeItem(ctx, id)
		return Change{Item: item, Removed: removed}, err
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return Change{}, apperrors.NotFound("cart item", id)
	}

	item := s.items[i]
	capped := item.CapToStock(quantity)
	if capped <= 0 {
		s.remove(id)
		err := s.persist(ctx)
		items := s.snapshot()
		s.mu.Unlock()
		s.changed(ctx, items)
		return Change{Item: item.Clone(), Clamped: true, Removed: true}, err
	}

	change := Change{Clamped: capped < quantity}
	item.Quantity = capped
	s.items[i] = item
	change.Item = item.Clone()

	err := s.persist(ctx)
	items := s.snapshot()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("product_id", id),
		slog.Int("quantity", capped),
	)
	s.changed(ctx, items)
	return change, err
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.replace(nil)
	err := s.persist(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "cart cleared")
	if s.events != nil {
		if perr := s.events.PublishCartCleared(ctx, s.sessionID); perr != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event", slog.String("error", perr.Error()))
		}
	}
	s.notify(ctx, nil)
	return err
}

// Settle takes the quantities of a placed order out of the cart. Lines added
// or increased after the order was submitted stay in the cart. When nothing
// remains the cart is cleared.
func (s *Store) Settle(ctx context.Context, lines []domain.OrderLine) error {
	s.mu.Lock()
	for _, line := range lines {
		i, ok := s.index[line.ProductID]
		if !ok {
			continue
		}
		if s.items[i].Quantity > line.Quantity {
			s.items[i].Quantity -= line.Quantity
			continue
		}
		s.remove(line.ProductID)
	}
	err := s.persist(ctx)
	items := s.snapshot()
	s.mu.Unlock()

	if len(items) == 0 {
		s.logger.InfoContext(ctx, "cart cleared")
		if s.events != nil {
			if perr := s.events.PublishCartCleared(ctx, s.sessionID); perr != nil {
				s.logger.ErrorContext(ctx, "failed to publish cart.cleared event", slog.String("error", perr.Error()))
			}
		}
		s.notify(ctx, nil)
		return err
	}

	s.logger.InfoContext(ctx, "ordered lines removed from cart", slog.Int("remaining_lines", len(items)))
	s.changed(ctx, items)
	return err
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Item returns a copy of the line with id.
func (s *Store) Item(id string) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// Summary derives the cart summary from the current items.
func (s *Store) Summary() domain.CartSummary {
	return s.policy.Summarize(s.Items())
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// OnChange registers fn to be called after every change.
func (s *Store) OnChange(fn Listener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// persist writes the snapshot. The in-memory cart stays authoritative when
// the write fails. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	if s.unrestored {
		s.logger.WarnContext(ctx, "cart snapshot not restored, skipping write")
		return apperrors.Persistence(fmt.Sprintf("save cart %s", s.sessionID), errSnapshotNotRestored)
	}
	if err := s.repo.Save(ctx, s.key, s.items); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist cart snapshot", slog.String("error", err.Error()))
		return apperrors.Persistence(fmt.Sprintf("save cart %s", s.sessionID), err)
	}
	return nil
}

func (s *Store) changed(ctx context.Context, items []domain.CartItem) {
	if s.events != nil {
		if err := s.events.PublishCartUpdated(ctx, s.sessionID, items, s.policy.Summarize(items)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.updated event", slog.String("error", err.Error()))
		}
	}
	s.notify(ctx, items)
}

func (s *Store) notify(ctx context.Context, items []domain.CartItem) {
	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, cloneItems(items))
	}
}

func (s *Store) lookup(id string) (domain.CartItem, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.CartItem{}, false
	}
	return s.items[i].Clone(), true
}

func (s *Store) upsert(item domain.CartItem) {
	if i, ok := s.index[item.ID]; ok {
		s.items[i] = item
		return
	}
	s.index[item.ID] = len(s.items)
	s.items = append(s.items, item)
}

func (s *Store) remove(id string) {
	i := s.index[id]
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
}

func (s *Store) replace(items []domain.CartItem) {
	s.items = make([]domain.CartItem, 0, len(items))
	s.index = make(map[string]int, len(items))
	for _, item := range items {
		s.upsert(item.Clone())
	}
}

func (s *Store) snapshot() []domain.CartItem {
	return cloneItems(s.items)
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

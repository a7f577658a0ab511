// Package session keeps the per-session storefront components in memory: the
// cart, the checkout orchestrator and the guest OTP challenge.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/auth"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/cart"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/checkout"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/event"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/otp"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// DefaultMaxPaymentPending bounds how long an untouched session may wait on
// the gateway before it is swept.
const DefaultMaxPaymentPending = 24 * time.Hour

// Config holds the settings shared by every session.
type Config struct {
	Cart     cart.Config
	Checkout checkout.Config
	// MaxPaymentPending is the idle time after which a session still waiting
	// on a payment outcome is swept. Zero means DefaultMaxPaymentPending.
	MaxPaymentPending time.Duration
}

// Deps are the collaborators shared by every session. Events and Metrics may be nil.
type Deps struct {
	Snapshots repository.SnapshotRepository
	Attempts  repository.AttemptRepository
	Orders    checkout.OrderAPI
	Gateway   payment.Gateway
	OTP       otp.Provider
	Events    *event.Producer
	Metrics   *checkout.Metrics
	Logger    *slog.Logger
}

// Session groups one storefront session's components.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator
	OTP      *otp.Challenge

	restoreMu sync.Mutex
	restored  bool
	lastSeen  time.Time
}

// Registry creates sessions on first use and keeps them until they go idle.
type Registry struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, deps Deps) *Registry {
	if cfg.MaxPaymentPending <= 0 {
		cfg.MaxPaymentPending = DefaultMaxPaymentPending
	}
	return &Registry{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it and restoring its persisted cart
// on first use. When storage cannot be read the error is returned and the
// restore is attempted again on the next Get; the stored cart is never
// replaced by an empty one.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.build(id)
		r.sessions[id] = s
	}
	s.lastSeen = r.now()
	r.mu.Unlock()

	if err := r.restore(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) restore(ctx context.Context, s *Session) error {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	if s.restored {
		return nil
	}
	if err := s.Cart.Load(ctx); err != nil {
		r.logger.ErrorContext(ctx, "failed to restore cart, will retry on next request",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.restored = true
	return nil
}

func (r *Registry) build(id string) *Session {
	var cartEvents cart.EventPublisher
	var checkoutEvents checkout.EventPublisher
	if r.deps.Events != nil {
		cartEvents = r.deps.Events
		checkoutEvents = r.deps.Events
	}

	store := cart.NewStore(id, r.cfg.Cart, r.deps.Snapshots, cartEvents, r.logger)
	challenge := otp.NewChallenge(r.deps.OTP, r.logger.With(slog.String("session_id", id)))
	orch := checkout.New(id, r.cfg.Checkout, checkout.Deps{
		Cart:     store,
		Orders:   r.deps.Orders,
		Gateway:  r.deps.Gateway,
		Attempts: r.deps.Attempts,
		Gate:     auth.NewGate(challenge),
		Events:   checkoutEvents,
		Metrics:  r.deps.Metrics,
		Logger:   r.logger,
	})
	store.OnChange(orch.CartChanged)

	return &Session{ID: id, Cart: store, Checkout: orch, OTP: challenge}
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many were
// dropped. A session with a submission in flight is kept. A session waiting on
// a payment outcome is kept until it has been idle for MaxPaymentPending, then
// its gateway session is dismissed before it is dropped. The cart snapshot and
// the ledger attempt stay in storage and are picked up on the next request.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := r.now()
	cutoff := now.Add(-maxIdle)
	pendingCutoff := now.Add(-max(maxIdle, r.cfg.MaxPaymentPending))

	r.mu.Lock()
	var stale []*Session
	dropped := 0
	for id, s := range r.sessions {
		if s.lastSeen.After(cutoff) {
			continue
		}
		switch s.Checkout.State() {
		case domain.StateSubmitting:
			continue
		case domain.StatePaymentPending:
			if s.lastSeen.After(pendingCutoff) {
				continue
			}
			stale = append(stale, s)
		}
		delete(r.sessions, id)
		dropped++
	}
	r.mu.Unlock()

	ctx := context.Background()
	for _, s := range stale {
		if err := s.Checkout.Abandon(ctx); err != nil {
			r.logger.Error("failed to release stale payment session",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.Info("dropped idle sessions", slog.Int("count", n), slog.Int("remaining", r.Len()))
			}
		}
	}
}

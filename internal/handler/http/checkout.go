package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/checkout"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
)

// maxWait bounds long-polling on GET /checkout below the router timeout.
const maxWait = 25 * time.Second

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(sessions Sessions, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// SubmitAddressRequest is the JSON request body for PUT /api/v1/checkout/address.
// Field presence is checked by the orchestrator so it can report the first
// missing field.
type SubmitAddressRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress" validate:"-"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Notes           string                 `json:"notes" validate:"max=1000"`
}

// Get handles GET /api/v1/checkout. With ?wait=<duration> it blocks until the
// checkout reaches a terminal state or the wait elapses.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("wait")
	if raw == "" {
		httputil.WriteData(w, http.StatusOK, s.Checkout.Snapshot())
		return
	}

	wait, err := time.ParseDuration(raw)
	if err != nil || wait <= 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("wait must be a positive duration such as 10s"), h.logger)
		return
	}
	if wait > maxWait {
		wait = maxWait
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	snap, err := s.Checkout.Wait(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, snap)
}

// Begin handles POST /api/v1/checkout/begin
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.Begin(ctx)
	})
}

// SubmitAddress handles PUT /api/v1/checkout/address
func (h *CheckoutHandler) SubmitAddress(w http.ResponseWriter, r *http.Request) {
	var req SubmitAddressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.SubmitAddress(ctx, req.ShippingAddress, req.PaymentMethod, req.Notes)
	})
}

// EditAddress handles POST /api/v1/checkout/address/edit
func (h *CheckoutHandler) EditAddress(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.EditAddress(ctx)
	})
}

// Confirm handles POST /api/v1/checkout/confirm. Online orders answer with the
// payment session the client opens the hosted checkout with.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.Confirm(ctx)
	})
}

// RetryPayment handles POST /api/v1/checkout/payment/retry
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.RetryPayment(ctx)
	})
}

// CancelPayment handles POST /api/v1/checkout/payment/cancel
func (h *CheckoutHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.CancelPayment(ctx)
	})
}

// Reset handles POST /api/v1/checkout/reset
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, o *checkout.Orchestrator) (checkout.Snapshot, error) {
		return o.Reset(ctx)
	})
}

func (h *CheckoutHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, *checkout.Orchestrator) (checkout.Snapshot, error)) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	snap, err := fn(r.Context(), s.Checkout)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, snap)
}

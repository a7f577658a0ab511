// Package payment defines the hosted-checkout gateway contract and turns its
// three callbacks into a single awaitable outcome.
package payment

import (
	"context"
	"sync"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// Kind is the variant of a resolved payment.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindFailure   Kind = "failure"
	KindDismissed Kind = "dismissed"
)

// Outcome is the single result of a payment session.
type Outcome struct {
	Kind Kind `json:"kind"`
	// PaymentID is set on success.
	PaymentID string `json:"paymentId,omitempty"`
	// Code and Reason describe a failure.
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Prefill carries the contact fields shown pre-populated in the hosted checkout.
type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// LineItem is an order line as displayed by the gateway.
type LineItem struct {
	ID        string
	Name      string
	Quantity  int
	UnitPrice domain.Amount
}

// Request opens a hosted checkout for one order.
type Request struct {
	OrderRef         string
	OrderID          string
	Amount           domain.Amount
	AmountMinorUnits int64
	Currency         string
	Prefill          Prefill
	Items            []LineItem
}

// Callbacks receive the gateway's report for a session. Exactly one is invoked.
type Callbacks struct {
	OnSuccess func(paymentID string)
	OnFailure func(code, reason string)
	OnDismiss func()
}

// Session is what the client needs to render the hosted checkout.
type Session struct {
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// Gateway is a hosted-checkout payment provider.
type Gateway interface {
	// Name returns the gateway name (e.g. "mock", "midtrans").
	Name() string

	// Open registers cb under req.OrderRef and starts a hosted checkout.
	// cb must be registered before the gateway can report anything.
	Open(ctx context.Context, req Request, cb Callbacks) (Session, error)

	// Dismiss reports that the shopper closed the hosted checkout.
	Dismiss(ctx context.Context, orderRef string) error

	// HandleNotification applies a server-to-server status report.
	HandleNotification(ctx context.Context, payload []byte) error
}

// Registry maps gateway order references to the callbacks waiting on them.
// Gateways share it between Open and their notification paths.
type Registry struct {
	mu        sync.Mutex
	callbacks map[string]Callbacks
}

// NewRegistry creates an empty callback registry.
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[string]Callbacks)}
}

// Register stores cb under ref. A ref can only be registered once while pending.
func (r *Registry) Register(ref string, cb Callbacks) error {
	if ref == "" {
		return apperrors.InvalidInput("payment order reference is required")
	}
	if cb.OnSuccess == nil || cb.OnFailure == nil || cb.OnDismiss == nil {
		return apperrors.InvalidInput("all payment callbacks must be registered")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[ref]; ok {
		return apperrors.Conflict("payment session " + ref + " is already open")
	}
	r.callbacks[ref] = cb
	return nil
}

// Resolve removes the callbacks registered under ref and invokes the one that
// matches o. It reports false when nothing was pending for ref.
func (r *Registry) Resolve(ref string, o Outcome) bool {
	r.mu.Lock()
	cb, ok := r.callbacks[ref]
	if ok {
		delete(r.callbacks, ref)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	switch o.Kind {
	case KindSuccess:
		cb.OnSuccess(o.PaymentID)
	case KindFailure:
		cb.OnFailure(o.Code, o.Reason)
	default:
		cb.OnDismiss()
	}
	return true
}

// Remove drops ref without invoking anything.
func (r *Registry) Remove(ref string) {
	r.mu.Lock()
	delete(r.callbacks, ref)
	r.mu.Unlock()
}

// Pending reports whether ref is waiting for an outcome.
func (r *Registry) Pending(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.callbacks[ref]
	return ok
}

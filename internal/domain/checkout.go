package domain

import (
	"strings"
	"time"
)

// State is a checkout orchestrator state.
type State string

// Checkout state constants.
const (
	StateIdle             State = "idle"
	StateAddressEntry     State = "address_entry"
	StateAddressConfirm   State = "address_confirm"
	StateSubmitting       State = "submitting"
	StateOrderPlaced      State = "order_placed"
	StatePaymentPending   State = "payment_pending"
	StatePaymentSuccess   State = "payment_success"
	StatePaymentFailed    State = "payment_failed"
	StatePaymentCancelled State = "payment_cancelled"
)

// IsTerminal reports whether the state ends a checkout attempt.
func (s State) IsTerminal() bool {
	switch s {
	case StateOrderPlaced, StatePaymentSuccess, StatePaymentFailed, StatePaymentCancelled:
		return true
	}
	return false
}

// ClearsCart reports whether reaching the state empties the cart.
func (s State) ClearsCart() bool {
	return s == StateOrderPlaced || s == StatePaymentSuccess
}

// PreSubmission reports whether the state precedes any Order API call.
func (s State) PreSubmission() bool {
	return s == StateIdle || s == StateAddressEntry || s == StateAddressConfirm
}

// PaymentMethod is how the shopper pays for an order.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

// ShippingAddress holds the contact and postal fields required to place an order.
// Field order defines which missing field is reported first.
type ShippingAddress struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Pincode   string `json:"pincode" validate:"required"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field,
// so whitespace-only values count as missing.
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Email:     strings.TrimSpace(a.Email),
		Phone:     strings.TrimSpace(a.Phone),
		Address:   strings.TrimSpace(a.Address),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		Pincode:   strings.TrimSpace(a.Pincode),
	}
}

// FullName joins first and last name.
func (a ShippingAddress) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// OrderLine captures a cart line at submission time. Price is the discount-applied
// unit price, snapshotted rather than referencing the catalog.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     Amount `json:"price"`
}

// OrderRequest is the payload sent to the Order API.
type OrderRequest struct {
	Items           []OrderLine     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Notes           string          `json:"notes"`
	TotalAmount     Amount          `json:"totalAmount"`
}

// Order is the locally known view of an order created by the Order API.
// Lifecycle status is owned by the server and not tracked here.
type Order struct {
	ID              string          `json:"id"`
	Items           []OrderLine     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	TotalAmount     Amount          `json:"totalAmount"`
}

// PaymentSession exists only between order creation and payment resolution.
type PaymentSession struct {
	GatewayOrderRef  string `json:"gatewayOrderRef"`
	OrderID          string `json:"orderId"`
	Amount           Amount `json:"amount"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
	Gateway          string `json:"gateway"`
	Token            string `json:"token,omitempty"`
	RedirectURL      string `json:"redirectUrl,omitempty"`
}

// Checkout attempt status constants.
const (
	AttemptOpen      = "open"
	AttemptCompleted = "completed"
)

// CheckoutAttempt is the ledger record that ties a submission fingerprint to the
// idempotency key sent to the Order API and the order it produced. PaymentSeq
// is the last sequence used in a gateway order reference for that order.
type CheckoutAttempt struct {
	IdempotencyKey string        `json:"idempotency_key"`
	SessionID      string        `json:"session_id"`
	Fingerprint    string        `json:"fingerprint"`
	OrderID        string        `json:"order_id,omitempty"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	TotalAmount    Amount        `json:"total_amount"`
	Status         string        `json:"status"`
	Outcome        State         `json:"outcome,omitempty"`
	PaymentID      string        `json:"payment_id,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	PaymentSeq     int           `json:"payment_seq"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsOpen reports whether the attempt can still be reused by a resubmission.
func (a *CheckoutAttempt) IsOpen() bool {
	return a.Status == AttemptOpen
}

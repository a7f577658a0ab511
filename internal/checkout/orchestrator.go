// Package checkout drives a storefront session from a ready cart to a placed
// order, including the hosted payment step for online orders.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/event"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/pricing"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/tracing"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/validator"
)

const tracerName = "github.com/Aniket7411/Gems-frontend-sub001/internal/checkout"

// ErrVerificationRequired is returned by Confirm when a guest has not passed
// the OTP challenge for the shipping address phone.
var ErrVerificationRequired = errors.New("verification required")

func verificationRequired() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "VERIFICATION_REQUIRED",
		Message: "verify the shipping address phone number before placing the order",
		Status:  http.StatusForbidden,
		Err:     ErrVerificationRequired,
	}
}

// Cart is the part of the cart store checkout reads and settles.
type Cart interface {
	Items() []domain.CartItem
	Summary() domain.CartSummary
	Settle(ctx context.Context, lines []domain.OrderLine) error
}

// OrderAPI creates orders. The idempotency key lets the server collapse
// resubmissions of the same intent.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error)
}

// Gate decides whether the caller may submit an order shipping to phone.
type Gate interface {
	Verified(ctx context.Context, phone string) bool
}

// EventPublisher receives terminal checkout outcomes. *event.Producer satisfies it.
type EventPublisher interface {
	PublishCheckoutOutcome(ctx context.Context, data event.CheckoutOutcomeData) error
}

// Config holds per-orchestrator settings.
type Config struct {
	Currency string
}

// Deps are the collaborators of an Orchestrator. Events and Metrics may be nil.
type Deps struct {
	Cart     Cart
	Orders   OrderAPI
	Gateway  payment.Gateway
	Attempts repository.AttemptRepository
	Gate     Gate
	Events   EventPublisher
	Metrics  *Metrics
	Logger   *slog.Logger
}

// ErrorInfo is the last error surfaced to the shopper.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Snapshot is the externally visible checkout state.
type Snapshot struct {
	State          domain.State            `json:"state"`
	Address        *domain.ShippingAddress `json:"address,omitempty"`
	PaymentMethod  domain.PaymentMethod    `json:"paymentMethod,omitempty"`
	Notes          string                  `json:"notes,omitempty"`
	MissingField   string                  `json:"missingField,omitempty"`
	Order          *domain.Order           `json:"order,omitempty"`
	PaymentSession *domain.PaymentSession  `json:"paymentSession,omitempty"`
	PaymentID      string                  `json:"paymentId,omitempty"`
	Error          *ErrorInfo              `json:"error,omitempty"`
}

// Orchestrator is the checkout state machine for one storefront session.
// Network calls are made without holding the lock; the Submitting state keeps
// a second submission out while the Order API call is in flight.
type Orchestrator struct {
	sessionID string
	currency  string
	cart      Cart
	orders    OrderAPI
	gateway   payment.Gateway
	attempts  repository.AttemptRepository
	gate      Gate
	events    EventPublisher
	metrics   *Metrics
	logger    *slog.Logger

	mu           sync.Mutex
	state        domain.State
	changed      chan struct{}
	address      *domain.ShippingAddress
	method       domain.PaymentMethod
	notes        string
	missingField string
	lastErr      error

	order      *domain.Order
	lines      []payment.LineItem
	attempt    *domain.CheckoutAttempt
	session    *domain.PaymentSession
	pending    *payment.Pending
	paymentID  string
	// paymentSeq is the last sequence used in a gateway reference. It
	// continues from the ledger attempt when an order is reused.
	paymentSeq int
	// generation is bumped whenever an in-flight payment must be ignored.
	generation int
}

// New creates an orchestrator in the Idle state.
func New(sessionID string, cfg Config, deps Deps) *Orchestrator {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Orchestrator{
		sessionID: sessionID,
		currency:  cfg.Currency,
		cart:      deps.Cart,
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		attempts:  deps.Attempts,
		gate:      deps.Gate,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With(slog.String("session_id", sessionID)),
		state:     domain.StateIdle,
		changed:   make(chan struct{}),
	}
}

// Begin moves a non-empty cart into address entry. It also starts a fresh
// attempt from any terminal state, keeping the last address as a prefill.
func (o *Orchestrator) Begin(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.state == domain.StateSubmitting, o.state == domain.StatePaymentPending:
		return o.snapshotLocked(), apperrors.Conflict("checkout is already in progress")
	case o.state == domain.StateAddressEntry, o.state == domain.StateAddressConfirm:
		return o.snapshotLocked(), nil
	}

	if len(o.cart.Items()) == 0 {
		o.resetLocked()
		o.lastErr = apperrors.EmptyCart()
		return o.snapshotLocked(), apperrors.EmptyCart()
	}

	o.resetLocked()
	o.setStateLocked(domain.StateAddressEntry)
	o.logger.InfoContext(ctx, "checkout started")
	return o.snapshotLocked(), nil
}

// SubmitAddress validates addr and moves to address confirmation. On failure
// the orchestrator stays in address entry and reports the first missing field.
func (o *Orchestrator) SubmitAddress(ctx context.Context, addr domain.ShippingAddress, method domain.PaymentMethod, notes string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != domain.StateAddressEntry {
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("cannot submit an address in state %s", o.state))
	}
	if len(o.cart.Items()) == 0 {
		o.toEmptyCartLocked()
		return o.snapshotLocked(), apperrors.EmptyCart()
	}

	addr = addr.Trimmed()
	o.address = &addr
	o.method = method
	o.notes = notes

	if err := validator.Validate(addr); err != nil {
		var ve *validator.ValidationError
		if !errors.As(err, &ve) {
			return o.snapshotLocked(), err
		}
		field, msg := ve.First()
		verr := apperrors.Validation(field, msg)
		o.missingField = field
		o.lastErr = verr
		return o.snapshotLocked(), verr
	}
	if !method.Valid() {
		verr := apperrors.Validation("paymentMethod", "must be one of cod, online")
		o.missingField = "paymentMethod"
		o.lastErr = verr
		return o.snapshotLocked(), verr
	}

	o.missingField = ""
	o.lastErr = nil
	o.setStateLocked(domain.StateAddressConfirm)
	o.logger.InfoContext(ctx, "shipping address accepted", slog.String("payment_method", string(method)))
	return o.snapshotLocked(), nil
}

// EditAddress returns from confirmation to address entry without side effects.
func (o *Orchestrator) EditAddress(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != domain.StateAddressConfirm {
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("cannot edit the address in state %s", o.state))
	}
	o.setStateLocked(domain.StateAddressEntry)
	o.logger.DebugContext(ctx, "returned to address entry")
	return o.snapshotLocked(), nil
}

// Confirm submits the order. The Order API is called at most once per
// submission; a resubmission of an unchanged intent whose order already
// exists reuses that order. COD orders finish in OrderPlaced, online orders
// open the payment gateway and finish asynchronously.
func (o *Orchestrator) Confirm(ctx context.Context) (snap Snapshot, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "checkout.confirm")
	defer func() {
		tracing.End(span, err,
			attribute.String("checkout.state", string(snap.State)),
			attribute.String("checkout.session_id", o.sessionID),
		)
	}()

	o.mu.Lock()
	if o.state != domain.StateAddressConfirm {
		defer o.mu.Unlock()
		if o.state == domain.StateSubmitting {
			return o.snapshotLocked(), apperrors.Conflict("order submission already in progress")
		}
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("cannot confirm in state %s", o.state))
	}
	items := o.cart.Items()
	if len(items) == 0 {
		defer o.mu.Unlock()
		o.toEmptyCartLocked()
		return o.snapshotLocked(), apperrors.EmptyCart()
	}
	if o.gate != nil && !o.gate.Verified(ctx, o.address.Phone) {
		defer o.mu.Unlock()
		verr := verificationRequired()
		o.lastErr = verr
		return o.snapshotLocked(), verr
	}

	req := o.orderRequestLocked(items)
	o.lines = lineItems(items)
	o.lastErr = nil
	o.setStateLocked(domain.StateSubmitting)
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "submitting order",
		slog.String("payment_method", string(req.PaymentMethod)),
		slog.String("total", req.TotalAmount.String()),
		slog.Int("lines", len(req.Items)),
	)

	attempt, orderID, err := o.submit(ctx, req)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.lastErr = err
		o.setStateLocked(domain.StateAddressConfirm)
		return o.snapshotLocked(), err
	}

	o.mu.Lock()
	o.attempt = attempt
	o.order = &domain.Order{
		ID:              orderID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TotalAmount:     req.TotalAmount,
	}
	o.mu.Unlock()

	if req.PaymentMethod == domain.PaymentCOD {
		o.settleCart(ctx, req.Items)
		o.finish(ctx, domain.StateOrderPlaced, payment.Outcome{}, o.generationNow())
		return o.Snapshot(), nil
	}

	if err := o.openPayment(ctx); err != nil {
		return o.Snapshot(), err
	}
	return o.Snapshot(), nil
}

// RetryPayment reopens the gateway for the existing order after a failed or
// cancelled payment. The Order API is not called again.
func (o *Orchestrator) RetryPayment(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if o.state != domain.StatePaymentFailed && o.state != domain.StatePaymentCancelled {
		defer o.mu.Unlock()
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("cannot retry payment in state %s", o.state))
	}
	if o.order == nil || o.order.PaymentMethod != domain.PaymentOnline {
		defer o.mu.Unlock()
		return o.snapshotLocked(), apperrors.Conflict("no online order to pay for")
	}
	if len(o.cart.Items()) == 0 {
		defer o.mu.Unlock()
		o.toEmptyCartLocked()
		return o.snapshotLocked(), apperrors.EmptyCart()
	}
	o.lastErr = nil
	o.paymentID = ""
	orderID := o.order.ID
	o.setStateLocked(domain.StateSubmitting)
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "retrying payment", slog.String("order_id", orderID))
	if err := o.openPayment(ctx); err != nil {
		return o.Snapshot(), err
	}
	return o.Snapshot(), nil
}

// CancelPayment reports that the shopper dismissed the hosted checkout.
func (o *Orchestrator) CancelPayment(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if o.state != domain.StatePaymentPending || o.pending == nil {
		defer o.mu.Unlock()
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("no payment to cancel in state %s", o.state))
	}
	ref := o.pending.Ref()
	o.mu.Unlock()

	// NotFound means the gateway reported an outcome first; Wait picks it up.
	if err := o.gateway.Dismiss(ctx, ref); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return o.Snapshot(), err
	}
	return o.Wait(ctx)
}

// Abandon resolves a payment still pending at the gateway as dismissed, so
// its registration is released. It does nothing in any other state.
func (o *Orchestrator) Abandon(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StatePaymentPending || o.pending == nil {
		o.mu.Unlock()
		return nil
	}
	ref := o.pending.Ref()
	o.mu.Unlock()

	o.logger.WarnContext(ctx, "abandoning stale payment session", slog.String("gateway_ref", ref))
	if err := o.gateway.Dismiss(ctx, ref); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// Reset abandons the checkout and returns to Idle. A submission or payment in
// flight cannot be abandoned.
func (o *Orchestrator) Reset(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == domain.StateSubmitting || o.state == domain.StatePaymentPending {
		return o.snapshotLocked(), apperrors.Conflict(fmt.Sprintf("cannot reset in state %s", o.state))
	}
	o.resetLocked()
	o.logger.DebugContext(ctx, "checkout reset")
	return o.snapshotLocked(), nil
}

// CartChanged forces the checkout back to Idle when the cart is emptied
// before any order has been submitted.
func (o *Orchestrator) CartChanged(ctx context.Context, items []domain.CartItem) {
	if len(items) > 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.PreSubmission() && o.state != domain.StateIdle {
		o.toEmptyCartLocked()
		o.logger.InfoContext(ctx, "cart emptied, checkout returned to idle")
	}
}

// State returns the current state.
func (o *Orchestrator) State() domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the current externally visible state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait blocks until the checkout reaches a terminal state or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (Snapshot, error) {
	for {
		o.mu.Lock()
		if o.state.IsTerminal() {
			s := o.snapshotLocked()
			o.mu.Unlock()
			return s, nil
		}
		ch := o.changed
		o.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

// submit resolves the ledger attempt for req and calls the Order API unless
// the attempt already produced an order.
func (o *Orchestrator) submit(ctx context.Context, req domain.OrderRequest) (*domain.CheckoutAttempt, string, error) {
	fp := fingerprint(req)

	attempt, err := o.attempts.FindOpen(ctx, o.sessionID, fp)
	switch {
	case err == nil && attempt.OrderID != "":
		o.logger.InfoContext(ctx, "reusing order from earlier submission",
			slog.String("order_id", attempt.OrderID),
			slog.String("idempotency_key", attempt.IdempotencyKey),
		)
		return attempt, attempt.OrderID, nil
	case err == nil:
		// Earlier call failed or its result is unknown; resend under the same key.
	case errors.Is(err, apperrors.ErrNotFound):
		attempt = &domain.CheckoutAttempt{
			IdempotencyKey: uuid.New().String(),
			SessionID:      o.sessionID,
			Fingerprint:    fp,
			PaymentMethod:  req.PaymentMethod,
			TotalAmount:    req.TotalAmount,
			Status:         domain.AttemptOpen,
		}
		if err := o.attempts.Save(ctx, attempt); err != nil {
			o.logger.ErrorContext(ctx, "failed to record checkout attempt", slog.String("error", err.Error()))
		}
	default:
		o.logger.ErrorContext(ctx, "failed to look up checkout attempt", slog.String("error", err.Error()))
		attempt = &domain.CheckoutAttempt{
			IdempotencyKey: uuid.New().String(),
			SessionID:      o.sessionID,
			Fingerprint:    fp,
			PaymentMethod:  req.PaymentMethod,
			TotalAmount:    req.TotalAmount,
			Status:         domain.AttemptOpen,
		}
	}

	start := time.Now()
	orderID, err := o.orders.CreateOrder(ctx, req, attempt.IdempotencyKey)
	o.metrics.orderCall(start, err)
	if err != nil {
		o.logger.WarnContext(ctx, "order submission failed", slog.String("error", err.Error()))
		return nil, "", err
	}

	attempt.OrderID = orderID
	if err := o.attempts.Save(ctx, attempt); err != nil {
		o.logger.ErrorContext(ctx, "failed to record order on checkout attempt",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
	return attempt, orderID, nil
}

// openPayment opens a gateway session for the current order. The orchestrator
// is in Submitting when it is called.
func (o *Orchestrator) openPayment(ctx context.Context) error {
	o.mu.Lock()
	if o.attempt != nil && o.attempt.PaymentSeq > o.paymentSeq {
		o.paymentSeq = o.attempt.PaymentSeq
	}
	o.paymentSeq++
	o.generation++
	gen := o.generation
	order := *o.order
	var ledger *domain.CheckoutAttempt
	if o.attempt != nil {
		a := *o.attempt
		a.PaymentSeq = o.paymentSeq
		o.attempt = &a
		rec := a
		ledger = &rec
	}
	req := payment.Request{
		OrderRef:         gatewayRef(order.ID, o.paymentSeq),
		OrderID:          order.ID,
		Amount:           order.TotalAmount,
		AmountMinorUnits: order.TotalAmount.MinorUnits(),
		Currency:         o.currency,
		Prefill: payment.Prefill{
			Name:  order.ShippingAddress.FullName(),
			Email: order.ShippingAddress.Email,
			Phone: order.ShippingAddress.Phone,
		},
		Items: o.lines,
	}
	o.mu.Unlock()

	// The sequence is recorded before the gateway sees the reference.
	if ledger != nil {
		if err := o.attempts.Save(ctx, ledger); err != nil {
			o.logger.ErrorContext(ctx, "failed to record payment sequence",
				slog.String("idempotency_key", ledger.IdempotencyKey),
				slog.String("gateway_ref", req.OrderRef),
				slog.String("error", err.Error()),
			)
		}
	}

	pending, err := payment.Open(ctx, o.gateway, req)
	o.metrics.paymentOpen(o.gateway.Name(), err)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to open payment session",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		o.mu.Lock()
		o.lastErr = err
		o.mu.Unlock()
		o.finish(ctx, domain.StatePaymentFailed, payment.Outcome{Kind: payment.KindFailure, Reason: err.Error()}, gen)
		return err
	}

	sess := pending.Session()
	o.mu.Lock()
	o.pending = pending
	o.session = &domain.PaymentSession{
		GatewayOrderRef:  req.OrderRef,
		OrderID:          order.ID,
		Amount:           req.Amount,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Gateway:          o.gateway.Name(),
		Token:            sess.Token,
		RedirectURL:      sess.RedirectURL,
	}
	o.setStateLocked(domain.StatePaymentPending)
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "payment session opened",
		slog.String("order_id", order.ID),
		slog.String("gateway_ref", req.OrderRef),
		slog.String("gateway", o.gateway.Name()),
	)

	go o.await(context.WithoutCancel(ctx), pending, gen, order.Items)
	return nil
}

func (o *Orchestrator) await(ctx context.Context, pending *payment.Pending, gen int, ordered []domain.OrderLine) {
	<-pending.Done()
	outcome, _ := pending.Outcome()

	switch outcome.Kind {
	case payment.KindSuccess:
		o.settleCart(ctx, ordered)
		o.finish(ctx, domain.StatePaymentSuccess, outcome, gen)
	case payment.KindFailure:
		o.mu.Lock()
		if gen == o.generation {
			o.lastErr = apperrors.PaymentFailed(failureMessage(outcome))
		}
		o.mu.Unlock()
		o.finish(ctx, domain.StatePaymentFailed, outcome, gen)
	default:
		o.mu.Lock()
		if gen == o.generation {
			o.lastErr = apperrors.Cancelled("payment was cancelled")
		}
		o.mu.Unlock()
		o.finish(ctx, domain.StatePaymentCancelled, outcome, gen)
	}
}

// finish applies a terminal state, then records it on the ledger and
// publishes the outcome. Stale generations are dropped.
func (o *Orchestrator) finish(ctx context.Context, state domain.State, outcome payment.Outcome, gen int) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.pending = nil
	o.session = nil
	if state == domain.StatePaymentSuccess {
		o.paymentID = outcome.PaymentID
	}
	o.setStateLocked(state)
	attempt := o.attempt
	data := event.CheckoutOutcomeData{
		SessionID:     o.sessionID,
		State:         state,
		PaymentID:     outcome.PaymentID,
		Reason:        outcome.Reason,
		PaymentMethod: o.method,
	}
	if o.order != nil {
		data.OrderID = o.order.ID
		data.PaymentMethod = o.order.PaymentMethod
		data.TotalAmount = o.order.TotalAmount
		if o.order.PaymentMethod == domain.PaymentOnline {
			data.GatewayOrderRef = gatewayRef(o.order.ID, o.paymentSeq)
		}
	}
	o.mu.Unlock()

	o.metrics.outcome(state)
	o.logger.InfoContext(ctx, "checkout reached terminal state",
		slog.String("state", string(state)),
		slog.String("order_id", data.OrderID),
	)

	if attempt != nil {
		o.recordOutcome(ctx, attempt, state, outcome)
	}
	if o.events != nil {
		if err := o.events.PublishCheckoutOutcome(ctx, data); err != nil {
			o.logger.ErrorContext(ctx, "failed to publish checkout outcome", slog.String("error", err.Error()))
		}
	}
}

// recordOutcome updates the ledger. Attempts that ended with a placed or paid
// order are completed; failed and cancelled payments stay open so the same
// intent reuses the order instead of creating a new one.
func (o *Orchestrator) recordOutcome(ctx context.Context, attempt *domain.CheckoutAttempt, state domain.State, outcome payment.Outcome) {
	a := *attempt
	a.Outcome = state
	a.PaymentID = outcome.PaymentID
	a.FailureReason = outcome.Reason
	if state.ClearsCart() {
		a.Status = domain.AttemptCompleted
	}
	if err := o.attempts.Save(ctx, &a); err != nil {
		o.logger.ErrorContext(ctx, "failed to record checkout outcome",
			slog.String("idempotency_key", a.IdempotencyKey),
			slog.String("error", err.Error()),
		)
		return
	}
	o.mu.Lock()
	if o.attempt == attempt {
		o.attempt = &a
	}
	o.mu.Unlock()
}

func gatewayRef(orderID string, seq int) string {
	return fmt.Sprintf("%s-%d", orderID, seq)
}

// settleCart removes the ordered lines from the cart. Items the shopper added
// while the order was in flight stay for a later checkout.
func (o *Orchestrator) settleCart(ctx context.Context, ordered []domain.OrderLine) {
	if err := o.cart.Settle(ctx, ordered); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist settled cart", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) generationNow() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

func (o *Orchestrator) orderRequestLocked(items []domain.CartItem) domain.OrderRequest {
	lines := make([]domain.OrderLine, len(items))
	for i, item := range items {
		lines[i] = domain.OrderLine{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     pricing.EffectivePrice(item),
		}
	}
	return domain.OrderRequest{
		Items:           lines,
		ShippingAddress: *o.address,
		PaymentMethod:   o.method,
		Notes:           o.notes,
		TotalAmount:     o.cart.Summary().Total,
	}
}

func lineItems(items []domain.CartItem) []payment.LineItem {
	out := make([]payment.LineItem, len(items))
	for i, item := range items {
		out[i] = payment.LineItem{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: pricing.EffectivePrice(item),
		}
	}
	return out
}

func (o *Orchestrator) setStateLocked(s domain.State) {
	o.state = s
	close(o.changed)
	o.changed = make(chan struct{})
}

func (o *Orchestrator) toEmptyCartLocked() {
	o.resetLocked()
	o.lastErr = apperrors.EmptyCart()
}

// resetLocked returns to Idle, keeping the last address as a prefill.
func (o *Orchestrator) resetLocked() {
	o.generation++
	o.missingField = ""
	o.lastErr = nil
	o.order = nil
	o.lines = nil
	o.attempt = nil
	o.session = nil
	o.pending = nil
	o.paymentID = ""
	o.setStateLocked(domain.StateIdle)
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         o.state,
		PaymentMethod: o.method,
		Notes:         o.notes,
		MissingField:  o.missingField,
		PaymentID:     o.paymentID,
	}
	if o.address != nil {
		a := *o.address
		s.Address = &a
	}
	if o.order != nil {
		ord := *o.order
		s.Order = &ord
	}
	if o.session != nil {
		ps := *o.session
		s.PaymentSession = &ps
	}
	if o.lastErr != nil {
		s.Error = errorInfo(o.lastErr)
	}
	return s
}

func errorInfo(err error) *ErrorInfo {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &ErrorInfo{Code: appErr.Code, Message: appErr.Message, Field: appErr.Field}
	}
	return &ErrorInfo{Code: "INTERNAL_ERROR", Message: err.Error()}
}

func failureMessage(o payment.Outcome) string {
	switch {
	case o.Reason != "":
		return o.Reason
	case o.Code != "":
		return "payment failed: " + o.Code
	default:
		return "payment failed"
	}
}

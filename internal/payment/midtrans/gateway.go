// Package midtrans adapts the Midtrans Snap hosted checkout to payment.Gateway.
package midtrans

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	midtransgo "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

const maxItemNameLen = 50

// Currency is the only currency Snap settles in.
const Currency = "IDR"

// SnapClient is the subset of snap.Client the gateway uses.
type SnapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtransgo.Error)
}

// Config holds the Midtrans credentials.
type Config struct {
	ServerKey  string
	Production bool
}

// NewSnapClient creates a Snap client for the configured environment.
func NewSnapClient(cfg Config) *snap.Client {
	env := midtransgo.Sandbox
	if cfg.Production {
		env = midtransgo.Production
	}
	c := &snap.Client{}
	c.New(cfg.ServerKey, env)
	return c
}

// Notification is the HTTP notification body Midtrans posts on status changes.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	StatusMessage     string `json:"status_message"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// Gateway opens Snap transactions and resolves them from notifications.
type Gateway struct {
	client    SnapClient
	serverKey string
	registry  *payment.Registry
	logger    *slog.Logger

	mu       sync.Mutex
	expected map[string]int64
}

// NewGateway creates a Midtrans gateway. serverKey signs notifications.
func NewGateway(client SnapClient, serverKey string, logger *slog.Logger) *Gateway {
	return &Gateway{
		client:    client,
		serverKey: serverKey,
		registry:  payment.NewRegistry(),
		logger:    logger,
		expected:  make(map[string]int64),
	}
}

// Name returns the gateway name.
func (g *Gateway) Name() string {
	return "midtrans"
}

// Open registers cb under req.OrderRef and creates the Snap transaction.
// Snap charges whole rupiah, so the request must be in IDR with no fractional
// part; anything else is rejected rather than rounded.
func (g *Gateway) Open(ctx context.Context, req payment.Request, cb payment.Callbacks) (payment.Session, error) {
	gross, err := grossAmount(req)
	if err != nil {
		g.logger.WarnContext(ctx, "midtrans request rejected",
			slog.String("gateway_ref", req.OrderRef),
			slog.String("error", err.Error()),
		)
		return payment.Session{}, err
	}
	if err := g.registry.Register(req.OrderRef, cb); err != nil {
		return payment.Session{}, err
	}

	snapReq := &snap.Request{
		TransactionDetails: midtransgo.TransactionDetails{
			OrderID:  req.OrderRef,
			GrossAmt: gross,
		},
		CustomerDetail: customer(req.Prefill),
	}
	if items := itemDetails(req.Items, gross); items != nil {
		snapReq.Items = &items
	}

	resp, merr := g.client.CreateTransaction(snapReq)
	if merr != nil {
		g.registry.Remove(req.OrderRef)
		g.logger.ErrorContext(ctx, "failed to create midtrans transaction",
			slog.String("gateway_ref", req.OrderRef),
			slog.String("error", merr.Error()),
		)
		return payment.Session{}, fmt.Errorf("create snap transaction: %w", merr)
	}
	if resp == nil {
		g.registry.Remove(req.OrderRef)
		return payment.Session{}, errors.New("create snap transaction: empty response")
	}

	g.mu.Lock()
	g.expected[req.OrderRef] = gross
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "midtrans transaction created",
		slog.String("gateway_ref", req.OrderRef),
		slog.Int64("gross_amount", gross),
	)
	return payment.Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Dismiss resolves ref as dismissed after the shopper closed the Snap popup.
func (g *Gateway) Dismiss(ctx context.Context, orderRef string) error {
	if !g.resolve(orderRef, payment.Outcome{Kind: payment.KindDismissed}) {
		return apperrors.NotFound("payment session", orderRef)
	}
	g.logger.InfoContext(ctx, "midtrans session dismissed", slog.String("gateway_ref", orderRef))
	return nil
}

// HandleNotification verifies and applies a Midtrans HTTP notification.
// Notifications for unknown or already resolved sessions are ignored.
func (g *Gateway) HandleNotification(ctx context.Context, payload []byte) error {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return apperrors.InvalidInput("malformed midtrans notification")
	}
	if err := validate(n); err != nil {
		return err
	}
	if !g.verifySignature(n) {
		g.logger.WarnContext(ctx, "midtrans notification with invalid signature",
			slog.String("gateway_ref", n.OrderID),
		)
		return apperrors.Unauthorized("invalid notification signature")
	}

	outcome, final := g.outcomeFor(n)
	if !final {
		g.logger.DebugContext(ctx, "midtrans notification is not final",
			slog.String("gateway_ref", n.OrderID),
			slog.String("transaction_status", n.TransactionStatus),
		)
		return nil
	}

	if !g.resolve(n.OrderID, outcome) {
		g.logger.WarnContext(ctx, "notification for unknown payment session",
			slog.String("gateway_ref", n.OrderID),
			slog.String("transaction_status", n.TransactionStatus),
		)
		return nil
	}

	g.logger.InfoContext(ctx, "midtrans payment resolved",
		slog.String("gateway_ref", n.OrderID),
		slog.String("transaction_status", n.TransactionStatus),
		slog.String("payment_type", n.PaymentType),
		slog.String("outcome", string(outcome.Kind)),
	)
	return nil
}

func (g *Gateway) resolve(ref string, o payment.Outcome) bool {
	ok := g.registry.Resolve(ref, o)
	if ok {
		g.mu.Lock()
		delete(g.expected, ref)
		g.mu.Unlock()
	}
	return ok
}

// outcomeFor maps a transaction status to an outcome. final is false for
// statuses that may still change.
func (g *Gateway) outcomeFor(n Notification) (outcome payment.Outcome, final bool) {
	status := strings.ToLower(n.TransactionStatus)
	fraud := strings.ToLower(n.FraudStatus)

	switch {
	case status == "settlement",
		status == "capture" && (fraud == "" || fraud == "accept"):
		if !g.grossMatches(n) {
			return payment.Outcome{
				Kind:   payment.KindFailure,
				Code:   "GROSS_AMOUNT_MISMATCH",
				Reason: "paid amount does not match the order total",
			}, true
		}
		return payment.Outcome{Kind: payment.KindSuccess, PaymentID: n.TransactionID}, true
	case status == "capture" && fraud == "deny",
		status == "deny", status == "expire", status == "failure":
		reason := n.StatusMessage
		if reason == "" {
			reason = "payment " + status
		}
		return payment.Outcome{Kind: payment.KindFailure, Code: strings.ToUpper(status), Reason: reason}, true
	case status == "cancel":
		return payment.Outcome{Kind: payment.KindDismissed}, true
	default:
		return payment.Outcome{}, false
	}
}

func (g *Gateway) grossMatches(n Notification) bool {
	g.mu.Lock()
	want, ok := g.expected[n.OrderID]
	g.mu.Unlock()
	if !ok {
		return true
	}
	got, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil {
		return false
	}
	return got.Equal(decimal.NewFromInt(want))
}

func (g *Gateway) verifySignature(n Notification) bool {
	return Signature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey) ==
		strings.ToLower(strings.TrimSpace(n.SignatureKey))
}

// Signature computes the notification signature Midtrans sends as signature_key.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func validate(n Notification) error {
	switch {
	case strings.TrimSpace(n.OrderID) == "":
		return apperrors.Validation("order_id", "is required")
	case strings.TrimSpace(n.StatusCode) == "":
		return apperrors.Validation("status_code", "is required")
	case strings.TrimSpace(n.GrossAmount) == "":
		return apperrors.Validation("gross_amount", "is required")
	case strings.TrimSpace(n.SignatureKey) == "":
		return apperrors.Validation("signature_key", "is required")
	case strings.TrimSpace(n.TransactionStatus) == "":
		return apperrors.Validation("transaction_status", "is required")
	}
	return nil
}

func customer(p payment.Prefill) *midtransgo.CustomerDetails {
	first, last, _ := strings.Cut(strings.TrimSpace(p.Name), " ")
	return &midtransgo.CustomerDetails{
		FName: first,
		LName: strings.TrimSpace(last),
		Email: p.Email,
		Phone: p.Phone,
	}
}

// itemDetails converts order lines to Snap items. Snap rejects requests whose
// item total differs from the gross amount, so any remainder (shipping) is
// added as its own line and a mismatch drops the item list altogether.
func itemDetails(lines []payment.LineItem, gross int64) []midtransgo.ItemDetails {
	if len(lines) == 0 {
		return nil
	}
	items := make([]midtransgo.ItemDetails, 0, len(lines)+1)
	var sum int64
	for _, l := range lines {
		if !isWhole(l.UnitPrice.Decimal()) {
			return nil
		}
		price := l.UnitPrice.Decimal().IntPart()
		items = append(items, midtransgo.ItemDetails{
			ID:    l.ID,
			Name:  truncate(l.Name, maxItemNameLen),
			Price: price,
			Qty:   int32(l.Quantity),
		})
		sum += price * int64(l.Quantity)
	}
	switch {
	case sum == gross:
	case sum < gross:
		items = append(items, midtransgo.ItemDetails{ID: "shipping", Name: "Shipping", Price: gross - sum, Qty: 1})
	default:
		return nil
	}
	return items
}

// grossAmount returns the charge in whole IDR.
func grossAmount(req payment.Request) (int64, error) {
	if !strings.EqualFold(strings.TrimSpace(req.Currency), Currency) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("midtrans only accepts %s, got %q", Currency, req.Currency))
	}
	if req.AmountMinorUnits <= 0 || req.AmountMinorUnits%100 != 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("amount %s has a fractional part", req.Amount.String()))
	}
	gross := req.AmountMinorUnits / 100
	if !req.Amount.Decimal().Equal(decimal.NewFromInt(gross)) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("amount %s does not match %d minor units", req.Amount.String(), req.AmountMinorUnits))
	}
	return gross, nil
}

func isWhole(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Package mock provides a hosted-checkout gateway for development and tests.
package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// Notification is the status report accepted by HandleNotification.
type Notification struct {
	GatewayRef string `json:"gatewayRef"`
	Status     string `json:"status"`
	PaymentID  string `json:"paymentId"`
	Code       string `json:"code"`
	Reason     string `json:"reason"`
}

// Gateway resolves sessions only when told to, either through notifications,
// Dismiss, or automatically after a configured delay.
type Gateway struct {
	registry    *payment.Registry
	autoSucceed time.Duration
	logger      *slog.Logger
}

// NewGateway creates a mock gateway. When autoSucceed is positive every opened
// session succeeds after that delay.
func NewGateway(autoSucceed time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry:    payment.NewRegistry(),
		autoSucceed: autoSucceed,
		logger:      logger,
	}
}

// Name returns the gateway name.
func (g *Gateway) Name() string {
	return "mock"
}

// Open registers cb and returns a fake token.
func (g *Gateway) Open(ctx context.Context, req payment.Request, cb payment.Callbacks) (payment.Session, error) {
	if err := g.registry.Register(req.OrderRef, cb); err != nil {
		return payment.Session{}, err
	}

	g.logger.InfoContext(ctx, "mock payment session opened",
		slog.String("gateway_ref", req.OrderRef),
		slog.Int64("amount_minor_units", req.AmountMinorUnits),
		slog.String("currency", req.Currency),
	)

	if g.autoSucceed > 0 {
		ref := req.OrderRef
		time.AfterFunc(g.autoSucceed, func() {
			g.registry.Resolve(ref, payment.Outcome{
				Kind:      payment.KindSuccess,
				PaymentID: "mock_pay_" + uuid.New().String(),
			})
		})
	}

	return payment.Session{Token: "mock_tok_" + uuid.New().String()}, nil
}

// Dismiss resolves ref as dismissed.
func (g *Gateway) Dismiss(_ context.Context, orderRef string) error {
	if !g.registry.Resolve(orderRef, payment.Outcome{Kind: payment.KindDismissed}) {
		return apperrors.NotFound("payment session", orderRef)
	}
	return nil
}

// HandleNotification resolves a session from a JSON Notification. Status is
// one of "success", "failure" or "dismissed".
func (g *Gateway) HandleNotification(ctx context.Context, payload []byte) error {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return apperrors.InvalidInput("malformed payment notification")
	}
	if n.GatewayRef == "" {
		return apperrors.Validation("gatewayRef", "is required")
	}

	var outcome payment.Outcome
	switch payment.Kind(n.Status) {
	case payment.KindSuccess:
		if n.PaymentID == "" {
			n.PaymentID = "mock_pay_" + uuid.New().String()
		}
		outcome = payment.Outcome{Kind: payment.KindSuccess, PaymentID: n.PaymentID}
	case payment.KindFailure:
		outcome = payment.Outcome{Kind: payment.KindFailure, Code: n.Code, Reason: n.Reason}
	case payment.KindDismissed:
		outcome = payment.Outcome{Kind: payment.KindDismissed}
	default:
		return apperrors.Validation("status", "must be one of success, failure, dismissed")
	}

	if !g.registry.Resolve(n.GatewayRef, outcome) {
		g.logger.WarnContext(ctx, "notification for unknown payment session",
			slog.String("gateway_ref", n.GatewayRef),
		)
		return nil
	}
	g.logger.InfoContext(ctx, "mock payment resolved",
		slog.String("gateway_ref", n.GatewayRef),
		slog.String("outcome", n.Status),
	)
	return nil
}

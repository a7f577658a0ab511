package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	pkgkafka "github.com/Aniket7411/Gems-frontend-sub001/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated              = pkgkafka.TopicPrefix + ".cart.updated"
	TopicCartCleared              = pkgkafka.TopicPrefix + ".cart.cleared"
	TopicCheckoutOrderPlaced      = pkgkafka.TopicPrefix + ".checkout.order_placed"
	TopicCheckoutPaymentSucceeded = pkgkafka.TopicPrefix + ".checkout.payment_succeeded"
	TopicCheckoutPaymentFailed    = pkgkafka.TopicPrefix + ".checkout.payment_failed"
	TopicCheckoutPaymentCancelled = pkgkafka.TopicPrefix + ".checkout.payment_cancelled"
)

// Aggregate type constants.
const (
	AggregateTypeCart     = "cart"
	AggregateTypeCheckout = "checkout"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "gems-storefront"

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string             `json:"session_id"`
	Items     []CartItemData     `json:"items"`
	Summary   domain.CartSummary `json:"summary"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string        `json:"product_id"`
	Name      string        `json:"name"`
	Price     domain.Amount `json:"price"`
	Quantity  int           `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// CheckoutOutcomeData is the payload for terminal checkout events.
type CheckoutOutcomeData struct {
	SessionID       string               `json:"session_id"`
	OrderID         string               `json:"order_id"`
	State           domain.State         `json:"state"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
	TotalAmount     domain.Amount        `json:"total_amount"`
	GatewayOrderRef string               `json:"gateway_order_ref,omitempty"`
	PaymentID       string               `json:"payment_id,omitempty"`
	Reason          string               `json:"reason,omitempty"`
}

// Producer publishes storefront domain events. A nil *Producer is valid and
// publishes nothing, which is how a deployment without Kafka runs.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, items []domain.CartItem, summary domain.CartSummary) error {
	if p == nil {
		return nil
	}

	data := CartUpdatedData{
		SessionID: sessionID,
		Items:     make([]CartItemData, len(items)),
		Summary:   summary,
	}
	for i, item := range items {
		data.Items[i] = CartItemData{
			ProductID: item.ID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	if err := p.publish(ctx, TopicCartUpdated, sessionID, AggregateTypeCart, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", sessionID),
		slog.Int("item_count", summary.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	if p == nil {
		return nil
	}

	if err := p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, CartClearedData{SessionID: sessionID}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event", slog.String("session_id", sessionID))
	return nil
}

// PublishCheckoutOutcome publishes the event matching the terminal state in data.
func (p *Producer) PublishCheckoutOutcome(ctx context.Context, data CheckoutOutcomeData) error {
	if p == nil {
		return nil
	}

	topic, ok := outcomeTopic(data.State)
	if !ok {
		return fmt.Errorf("no checkout event for state %q", data.State)
	}

	if err := p.publish(ctx, topic, data.SessionID, AggregateTypeCheckout, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published checkout outcome event",
		slog.String("topic", topic),
		slog.String("order_id", data.OrderID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

func outcomeTopic(s domain.State) (string, bool) {
	switch s {
	case domain.StateOrderPlaced:
		return TopicCheckoutOrderPlaced, true
	case domain.StatePaymentSuccess:
		return TopicCheckoutPaymentSucceeded, true
	case domain.StatePaymentFailed:
		return TopicCheckoutPaymentFailed, true
	case domain.StatePaymentCancelled:
		return TopicCheckoutPaymentCancelled, true
	}
	return "", false
}

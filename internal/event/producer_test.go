package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	pkgkafka "github.com/Aniket7411/Gems-frontend-sub001/pkg/kafka"
)

// ============================================================================
// Mock Publisher
// ============================================================================

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ============================================================================
// Tests
// ============================================================================

func TestTopics_UsePrefix(t *testing.T) {
	assert.Equal(t, pkgkafka.Topic("cart", "updated"), TopicCartUpdated)
	assert.Equal(t, pkgkafka.Topic("checkout", "payment_failed"), TopicCheckoutPaymentFailed)
}

func TestPublishCartUpdated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())

	items := []domain.CartItem{{ID: "ruby-1", Name: "Ruby", Price: domain.AmountFromInt(1500), Quantity: 2}}
	summary := domain.CartSummary{ItemCount: 2, Subtotal: domain.AmountFromInt(3000)}

	pub.On("Publish", mock.Anything, TopicCartUpdated, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data CartUpdatedData
		if err := e.UnmarshalData(&data); err != nil {
			return false
		}
		return e.AggregateID == "sess-1" &&
			e.AggregateType == AggregateTypeCart &&
			e.Source == SourceStorefront &&
			len(data.Items) == 1 &&
			data.Items[0].ProductID == "ruby-1" &&
			data.Summary.ItemCount == 2
	})).Return(nil).Once()

	require.NoError(t, p.PublishCartUpdated(context.Background(), "sess-1", items, summary))
	pub.AssertExpectations(t)
}

func TestPublishCartCleared_PropagatesError(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())

	pub.On("Publish", mock.Anything, TopicCartCleared, mock.Anything).Return(errors.New("broker down")).Once()

	err := p.PublishCartCleared(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish gems.cart.cleared event")
}

func TestPublishCheckoutOutcome_TopicPerState(t *testing.T) {
	tests := []struct {
		state domain.State
		topic string
	}{
		{domain.StateOrderPlaced, TopicCheckoutOrderPlaced},
		{domain.StatePaymentSuccess, TopicCheckoutPaymentSucceeded},
		{domain.StatePaymentFailed, TopicCheckoutPaymentFailed},
		{domain.StatePaymentCancelled, TopicCheckoutPaymentCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			pub := new(mockPublisher)
			p := NewProducer(pub, newTestLogger())
			pub.On("Publish", mock.Anything, tt.topic, mock.Anything).Return(nil).Once()

			err := p.PublishCheckoutOutcome(context.Background(), CheckoutOutcomeData{
				SessionID: "sess-1",
				OrderID:   "ord-1",
				State:     tt.state,
			})
			require.NoError(t, err)
			pub.AssertExpectations(t)
		})
	}
}

func TestPublishCheckoutOutcome_NonTerminalState(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())

	err := p.PublishCheckoutOutcome(context.Background(), CheckoutOutcomeData{State: domain.StateSubmitting})
	require.Error(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestNilProducer_IsNoop(t *testing.T) {
	var p *Producer
	ctx := context.Background()

	assert.NoError(t, p.PublishCartUpdated(ctx, "s", nil, domain.CartSummary{}))
	assert.NoError(t, p.PublishCartCleared(ctx, "s"))
	assert.NoError(t, p.PublishCheckoutOutcome(ctx, CheckoutOutcomeData{State: domain.StateOrderPlaced}))
}

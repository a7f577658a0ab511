package pricing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
)

func amt(s string) domain.Amount { return domain.MustParseAmount(s) }

func item(price, discount string, dt domain.DiscountType, qty int) domain.CartItem {
	return domain.CartItem{
		ID:           fmt.Sprintf("gem-%s-%s", price, discount),
		Price:        amt(price),
		Discount:     amt(discount),
		DiscountType: dt,
		Quantity:     qty,
	}
}

// ============================================================================
// EffectivePrice Tests
// ============================================================================

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name string
		item domain.CartItem
		want string
	}{
		{"no discount", item("1000", "0", domain.DiscountPercentage, 1), "1000"},
		{"percentage", item("1000", "15", domain.DiscountPercentage, 1), "850"},
		{"flat", item("1000", "150", domain.DiscountFlat, 1), "850"},
		{"fractional percentage rounds", item("999.99", "33", domain.DiscountPercentage, 1), "669.99"},
		{"percentage over 100 clamps", item("1000", "150", domain.DiscountPercentage, 1), "0"},
		{"flat above price clamps", item("300", "500", domain.DiscountFlat, 1), "0"},
		{"unknown type ignored", item("1000", "20", domain.DiscountType("bogo"), 1), "1000"},
		{"empty type ignored", item("1000", "20", "", 1), "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectivePrice(tt.item)
			assert.True(t, got.Equal(amt(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestEffectivePrice_NeverNegative(t *testing.T) {
	for _, d := range []string{"0", "1", "50", "99.99", "100", "100.01", "250", "100000"} {
		for _, dt := range []domain.DiscountType{domain.DiscountPercentage, domain.DiscountFlat, "other"} {
			got := EffectivePrice(item("4999.5", d, dt, 1))
			assert.False(t, got.Decimal().IsNegative(), "discount %s type %s gave %s", d, dt, got)
		}
	}
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(item("1200", "10", domain.DiscountPercentage, 3))
	assert.True(t, got.Equal(amt("3240")), "got %s", got)
}

// ============================================================================
// Summarize Tests
// ============================================================================

func TestSummarize_BelowThreshold(t *testing.T) {
	s := Summarize([]domain.CartItem{
		item("1500", "0", "", 1),
		item("1000", "0", "", 3),
	})

	assert.Equal(t, 4, s.ItemCount)
	assert.True(t, s.Subtotal.Equal(amt("4500")))
	assert.True(t, s.Shipping.Equal(amt("200")))
	assert.True(t, s.Total.Equal(amt("4700")))
	assert.False(t, s.IsEligibleForFreeShipping)
	assert.True(t, s.FreeShippingThreshold.Equal(amt("5000")))
}

func TestSummarize_AtThreshold(t *testing.T) {
	s := Summarize([]domain.CartItem{item("2500", "0", "", 2)})

	assert.True(t, s.Subtotal.Equal(amt("5000")))
	assert.True(t, s.Shipping.IsZero())
	assert.True(t, s.Total.Equal(amt("5000")))
	assert.True(t, s.IsEligibleForFreeShipping)
}

func TestSummarize_DiscountDecidesEligibility(t *testing.T) {
	// 5200 before discount, 4680 after: shipping applies.
	s := Summarize([]domain.CartItem{item("5200", "10", domain.DiscountPercentage, 1)})

	assert.True(t, s.Subtotal.Equal(amt("4680")))
	assert.False(t, s.IsEligibleForFreeShipping)
	assert.True(t, s.Shipping.Equal(amt("200")))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.ItemCount)
	assert.True(t, s.Subtotal.IsZero())
	assert.True(t, s.Shipping.Equal(amt("200")))
	assert.True(t, s.Total.Equal(amt("200")))
}

func TestSummarize_TotalIsSubtotalPlusShipping(t *testing.T) {
	carts := [][]domain.CartItem{
		{item("10", "0", "", 1)},
		{item("4999.99", "0", "", 1)},
		{item("5000.01", "0", "", 1)},
		{item("700", "12.5", domain.DiscountPercentage, 7), item("90", "100", domain.DiscountFlat, 2)},
	}
	for _, c := range carts {
		s := Summarize(c)
		assert.True(t, s.Total.Equal(s.Subtotal.Add(s.Shipping)))
	}
}

func TestPolicy_Custom(t *testing.T) {
	p := Policy{FreeShippingThreshold: amt("1000"), FlatShippingFee: amt("49")}
	s := p.Summarize([]domain.CartItem{item("999", "0", "", 1)})

	assert.True(t, s.Shipping.Equal(amt("49")))
	assert.True(t, s.FreeShippingThreshold.Equal(amt("1000")))
}

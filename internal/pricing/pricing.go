// Package pricing computes per-item and aggregate cart prices. Every function is
// deterministic and free of I/O so it is safe to call on every query.
package pricing

import (
	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
)

// Default storefront shipping rules, in whole currency units.
const (
	FreeShippingThreshold = 5000
	FlatShippingFee       = 200
)

// Policy holds the shipping rules used by Summarize.
type Policy struct {
	FreeShippingThreshold domain.Amount
	FlatShippingFee       domain.Amount
}

// DefaultPolicy returns the storefront's standard shipping policy.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: domain.AmountFromInt(FreeShippingThreshold),
		FlatShippingFee:       domain.AmountFromInt(FlatShippingFee),
	}
}

// EffectivePrice returns the unit price after the item's discount, rounded to
// two decimal places and never below zero. Unknown discount types apply no discount.
func EffectivePrice(item domain.CartItem) domain.Amount {
	if !item.Discount.IsPositive() {
		return item.Price
	}

	var reduction domain.Amount
	switch item.DiscountType {
	case domain.DiscountPercentage:
		reduction = item.Price.Percent(item.Discount)
	case domain.DiscountFlat:
		reduction = item.Discount
	default:
		return item.Price
	}

	return item.Price.Sub(reduction).Round(2)
}

// LineTotal returns EffectivePrice multiplied by the item's quantity.
func LineTotal(item domain.CartItem) domain.Amount {
	return EffectivePrice(item).MulInt(item.Quantity)
}

// Summarize derives the cart summary under p.
func (p Policy) Summarize(items []domain.CartItem) domain.CartSummary {
	var (
		count    int
		subtotal domain.Amount
	)
	for _, item := range items {
		count += item.Quantity
		subtotal = subtotal.Add(LineTotal(item))
	}

	eligible := subtotal.GreaterThanOrEqual(p.FreeShippingThreshold)
	shipping := p.FlatShippingFee
	if eligible {
		shipping = domain.Zero
	}

	return domain.CartSummary{
		ItemCount:                 count,
		Subtotal:                  subtotal,
		Shipping:                  shipping,
		Total:                     subtotal.Add(shipping),
		FreeShippingThreshold:     p.FreeShippingThreshold,
		IsEligibleForFreeShipping: eligible,
	}
}

// Summarize derives the cart summary under the default policy.
func Summarize(items []domain.CartItem) domain.CartSummary {
	return DefaultPolicy().Summarize(items)
}

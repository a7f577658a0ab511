package domain

// DiscountType describes how a discount value is applied to a unit price.
type DiscountType string

// Discount type constants. Any other value means no discount applies.
const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// Product is the catalog view of a gemstone at the moment it is added to the cart.
// Price and discount fields arrive loosely typed from the catalog; Amount decodes them
// failing closed to zero.
type Product struct {
	ID           string       `json:"id" validate:"required"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	Price        Amount       `json:"price"`
	Discount     Amount       `json:"discount"`
	DiscountType DiscountType `json:"discountType"`
	SizeWeight   Amount       `json:"sizeWeight"`
	SizeUnit     string       `json:"sizeUnit"`
	Images       []string     `json:"images"`
	// Availability is optional in catalog payloads; absent means available.
	Availability *bool `json:"availability,omitempty"`
	Stock        *int  `json:"stock,omitempty"`
}

// IsAvailable reports whether the product may be added to a cart.
func (p Product) IsAvailable() bool {
	return p.Availability == nil || *p.Availability
}

// CartItem is a snapshot of a product's catalog fields plus the quantity in the cart.
// Later catalog changes do not affect an existing CartItem.
type CartItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	Price        Amount       `json:"price"`
	Discount     Amount       `json:"discount"`
	DiscountType DiscountType `json:"discountType"`
	SizeWeight   Amount       `json:"sizeWeight"`
	SizeUnit     string       `json:"sizeUnit"`
	Images       []string     `json:"images"`
	Quantity     int          `json:"quantity"`
	Availability bool         `json:"availability"`
	Stock        *int         `json:"stock,omitempty"`
}

// NewCartItem snapshots p with the given quantity.
func NewCartItem(p Product, quantity int) CartItem {
	images := make([]string, len(p.Images))
	copy(images, p.Images)

	item := CartItem{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Price:        p.Price,
		Discount:     p.Discount,
		DiscountType: p.DiscountType,
		SizeWeight:   p.SizeWeight,
		SizeUnit:     p.SizeUnit,
		Images:       images,
		Quantity:     quantity,
		Availability: p.IsAvailable(),
	}
	if p.Stock != nil {
		s := *p.Stock
		item.Stock = &s
	}
	return item
}

// Clone returns a deep copy so callers cannot mutate store-owned slices or pointers.
func (c CartItem) Clone() CartItem {
	out := c
	if c.Images != nil {
		out.Images = make([]string, len(c.Images))
		copy(out.Images, c.Images)
	}
	if c.Stock != nil {
		s := *c.Stock
		out.Stock = &s
	}
	return out
}

// CapToStock returns qty limited by the item's stock ceiling, if known.
func (c CartItem) CapToStock(qty int) int {
	if c.Stock != nil && qty > *c.Stock {
		return *c.Stock
	}
	return qty
}

// CartSummary is derived from the cart on every query and never stored.
type CartSummary struct {
	ItemCount                 int    `json:"itemCount"`
	Subtotal                  Amount `json:"subtotal"`
	Shipping                  Amount `json:"shipping"`
	Total                     Amount `json:"total"`
	FreeShippingThreshold     Amount `json:"freeShippingThreshold"`
	IsEligibleForFreeShipping bool   `json:"isEligibleForFreeShipping"`
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestProduct_IsAvailable(t *testing.T) {
	assert.True(t, Product{}.IsAvailable(), "missing flag means available")
	assert.True(t, Product{Availability: boolPtr(true)}.IsAvailable())
	assert.False(t, Product{Availability: boolPtr(false)}.IsAvailable())
}

func TestNewCartItem_SnapshotsProduct(t *testing.T) {
	p := Product{
		ID:       "emerald-3ct",
		Name:     "Colombian Emerald",
		Price:    AmountFromInt(12000),
		Discount: AmountFromInt(10),
		Images:   []string{"a.jpg"},
		Stock:    intPtr(4),
	}

	item := NewCartItem(p, 2)
	p.Images[0] = "changed.jpg"
	*p.Stock = 1
	p.Price = AmountFromInt(1)

	assert.Equal(t, "a.jpg", item.Images[0])
	assert.Equal(t, 4, *item.Stock)
	assert.True(t, item.Price.Equal(AmountFromInt(12000)))
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.Availability)
}

func TestCartItem_Clone_IsDeep(t *testing.T) {
	orig := CartItem{ID: "x", Images: []string{"1.jpg"}, Stock: intPtr(3)}
	cl := orig.Clone()
	cl.Images[0] = "2.jpg"
	*cl.Stock = 9

	assert.Equal(t, "1.jpg", orig.Images[0])
	assert.Equal(t, 3, *orig.Stock)
}

func TestCartItem_CapToStock(t *testing.T) {
	assert.Equal(t, 10, CartItem{}.CapToStock(10), "unknown stock never caps")
	assert.Equal(t, 3, CartItem{Stock: intPtr(3)}.CapToStock(10))
	assert.Equal(t, 2, CartItem{Stock: intPtr(3)}.CapToStock(2))
}

func TestCartItem_JSONSchema(t *testing.T) {
	item := CartItem{
		ID:           "ruby-1",
		Name:         "Burmese Ruby",
		Category:     "ruby",
		Price:        AmountFromInt(5000),
		Discount:     AmountFromInt(5),
		DiscountType: DiscountPercentage,
		SizeWeight:   MustParseAmount("2.5"),
		SizeUnit:     "carat",
		Images:       []string{"r1.jpg"},
		Quantity:     1,
		Availability: true,
		Stock:        intPtr(2),
	}

	b, err := json.Marshal(item)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, key := range []string{"id", "name", "category", "price", "discount", "discountType",
		"sizeWeight", "sizeUnit", "images", "quantity", "availability", "stock"} {
		assert.Contains(t, raw, key)
	}
}

func TestCartItem_DecodesLooseCatalogValues(t *testing.T) {
	raw := `{"id":"opal","price":"799","discount":null,"discountType":"bogus","quantity":1}`

	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.True(t, item.Price.Equal(AmountFromInt(799)))
	assert.True(t, item.Discount.IsZero())
	assert.Nil(t, item.Stock)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string    `json:"product_id" bson:"product_id"`
	VariantID string    `json:"variant_id,omitempty" bson:"variant_id,omitempty"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"added_at" bson:"added_at"`
}

type Cart struct {
	UserID    string     `json:"user_id" bson:"user_id"`
	Items     []CartItem `json:"items" bson:"items"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Find returns the index of the line for productID/variantID, or -1.
func (c *Cart) Find(productID, variantID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.VariantID == variantID {
			return i
		}
	}
	return -1
}

// SameLines reports whether c and items hold the same product/variant
// quantities, ignoring order and timestamps.
func (c *Cart) SameLines(items []CartItem) bool {
	if len(c.Items) != len(items) {
		return false
	}
	type lineKey struct{ productID, variantID string }
	want := make(map[lineKey]int, len(c.Items))
	for _, it := range c.Items {
		want[lineKey{it.ProductID, it.VariantID}] += it.Quantity
	}
	for _, it := range items {
		k := lineKey{it.ProductID, it.VariantID}
		if want[k] != it.Quantity {
			return false
		}
		delete(want, k)
	}
	return len(want) == 0
}

// CartLine is a cart item priced against live product data.
type CartLine struct {
	CartItem
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

// CartView carries the derived aggregates. They are recomputed on every read
// and are never stored.
type CartView struct {
	UserID        string          `json:"user_id"`
	Lines         []CartLine      `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

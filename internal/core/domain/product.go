package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Price struct {
	Base   decimal.Decimal
	Making decimal.Decimal
	GST    decimal.Decimal
	Final  decimal.Decimal
}

type Variant struct {
	ID              string
	Size            string
	Color           string
	Stock           int
	PriceAdjustment decimal.Decimal
}

type Product struct {
	ID            string
	Name          string
	SKU           string
	ImageURL      string
	Metal         Metal
	Active        bool
	Stock         int
	WeightGrams   *decimal.Decimal
	Purity        *string
	MakingCharges *decimal.Decimal
	GSTPercent    decimal.Decimal
	Price         Price
	Variants      []Variant
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// PriceInputsComplete reports whether the product carries everything needed
// to derive its price from a metal rate.
func (p *Product) PriceInputsComplete() bool {
	return p.WeightGrams != nil && p.Purity != nil && *p.Purity != "" && p.MakingCharges != nil
}

// PriceUpdate is a recomputed price for one product.
type PriceUpdate struct {
	ProductID string
	Price     Price
}

package domain

// StockDecrement describes one conditional stock reduction. An empty
// VariantID targets the product-level stock.
type StockDecrement struct {
	ProductID string
	VariantID string
	Quantity  int
}

// AvailableStock returns the stock a line draws from: the variant's stock
// when a variant is selected, the product's otherwise.
func AvailableStock(p *Product, variantID string) (int, bool) {
	if variantID == "" {
		return p.Stock, true
	}
	v := p.Variant(variantID)
	if v == nil {
		return 0, false
	}
	return v.Stock, true
}

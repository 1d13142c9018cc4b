package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateProvider quotes the price of one troy ounce of a metal, identified by
// its ISO 4217 symbol (XAU, XAG, XPT), in the provider's base currency.
type RateProvider interface {
	FetchRate(ctx context.Context, symbol string) (decimal.Decimal, error)
}

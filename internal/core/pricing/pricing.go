// Package pricing derives a jewellery item's price from the current metal rate.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/jewel-store/internal/core/domain"
)

// TroyOunceGrams is the number of grams in one troy ounce.
var TroyOunceGrams = decimal.RequireFromString("31.1035")

var (
	ErrInvalidPurity = errors.New("invalid purity")
	ErrInvalidInput  = errors.New("invalid price input")
)

var (
	hundred = decimal.NewFromInt(100)
	karats  = decimal.NewFromInt(24)
	mille   = decimal.NewFromInt(1000)
)

type Input struct {
	RatePerGram   decimal.Decimal
	WeightGrams   decimal.Decimal
	Purity        string
	MakingCharges decimal.Decimal
	GSTPercent    decimal.Decimal
}

// PerGram converts a per-troy-ounce quote into a per-gram rate.
func PerGram(perOunce decimal.Decimal) decimal.Decimal {
	return perOunce.Div(TroyOunceGrams)
}

// Fineness returns the fraction of pure metal for a purity mark. Karat marks
// ("22K", "18k") are over 24; three-digit millesimal marks ("925", "950")
// are over 1000.
func Fineness(purity string) (decimal.Decimal, error) {
	numerator, denominator, err := parsePurity(purity)
	if err != nil {
		return decimal.Zero, err
	}
	return numerator.Div(denominator), nil
}

// Calculate computes base = rate × weight × fineness, taxable = base + making,
// gst = taxable × gst% and final = taxable + gst, each rounded to 2 places.
func Calculate(in Input) (domain.Price, error) {
	if !in.RatePerGram.IsPositive() {
		return domain.Price{}, fmt.Errorf("%w: rate must be positive", ErrInvalidInput)
	}
	if !in.WeightGrams.IsPositive() {
		return domain.Price{}, fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
	}
	if in.MakingCharges.IsNegative() || in.GSTPercent.IsNegative() {
		return domain.Price{}, fmt.Errorf("%w: negative making charges or gst", ErrInvalidInput)
	}

	numerator, denominator, err := parsePurity(in.Purity)
	if err != nil {
		return domain.Price{}, err
	}

	// Multiply before dividing so whole-number inputs stay exact.
	base := in.RatePerGram.Mul(in.WeightGrams).Mul(numerator).Div(denominator).Round(2)
	taxable := base.Add(in.MakingCharges)
	gst := taxable.Mul(in.GSTPercent).Div(hundred).Round(2)

	return domain.Price{
		Base:   base,
		Making: in.MakingCharges.Round(2),
		GST:    gst,
		Final:  taxable.Add(gst).Round(2),
	}, nil
}

// ForProduct prices a product at the given per-gram rate. It fails when the
// product lacks weight, purity or making charges.
func ForProduct(p *domain.Product, ratePerGram decimal.Decimal) (domain.Price, error) {
	if !p.PriceInputsComplete() {
		return domain.Price{}, fmt.Errorf("%w: product %s lacks weight, purity or making charges", ErrInvalidInput, p.ID)
	}
	return Calculate(Input{
		RatePerGram:   ratePerGram,
		WeightGrams:   *p.WeightGrams,
		Purity:        *p.Purity,
		MakingCharges: *p.MakingCharges,
		GSTPercent:    p.GSTPercent,
	})
}

func parsePurity(purity string) (decimal.Decimal, decimal.Decimal, error) {
	p := strings.ToUpper(strings.TrimSpace(purity))
	if p == "" {
		return decimal.Zero, decimal.Zero, ErrInvalidPurity
	}

	if k, ok := strings.CutSuffix(p, "K"); ok {
		n, err := strconv.Atoi(k)
		if err != nil || n <= 0 || n > 24 {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPurity, purity)
		}
		return decimal.NewFromInt(int64(n)), karats, nil
	}

	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 || n > 1000 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPurity, purity)
	}
	return decimal.NewFromInt(int64(n)), mille, nil
}

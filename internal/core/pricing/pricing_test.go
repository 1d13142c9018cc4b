package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jewel-store/internal/core/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_EighteenKarat(t *testing.T) {
	price, err := Calculate(Input{
		RatePerGram:   dec("6000"),
		WeightGrams:   dec("10"),
		Purity:        "18K",
		MakingCharges: dec("500"),
		GSTPercent:    dec("3"),
	})
	require.NoError(t, err)

	assert.True(t, price.Base.Equal(dec("45000")), "base %s", price.Base)
	assert.True(t, price.Making.Equal(dec("500")), "making %s", price.Making)
	assert.True(t, price.GST.Equal(dec("1365")), "gst %s", price.GST)
	assert.True(t, price.Final.Equal(dec("46865")), "final %s", price.Final)
}

func TestCalculate_TwentyTwoKaratRoundsToPaise(t *testing.T) {
	price, err := Calculate(Input{
		RatePerGram:   dec("6543.21"),
		WeightGrams:   dec("3.5"),
		Purity:        "22k",
		MakingCharges: dec("750"),
		GSTPercent:    dec("3"),
	})
	require.NoError(t, err)

	// 6543.21 * 3.5 * 22 / 24 = 20992.79875
	assert.Equal(t, "20992.8", price.Base.String())
	assert.Equal(t, "652.28", price.GST.String())
	assert.Equal(t, "22395.08", price.Final.String())
}

func TestCalculate_Sterling(t *testing.T) {
	price, err := Calculate(Input{
		RatePerGram:   dec("80"),
		WeightGrams:   dec("20"),
		Purity:        "925",
		MakingCharges: dec("0"),
		GSTPercent:    dec("3"),
	})
	require.NoError(t, err)

	assert.Equal(t, "1480", price.Base.String())
	assert.Equal(t, "44.4", price.GST.String())
	assert.Equal(t, "1524.4", price.Final.String())
}

func TestCalculate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"zero rate", Input{RatePerGram: dec("0"), WeightGrams: dec("1"), Purity: "18K"}, ErrInvalidInput},
		{"zero weight", Input{RatePerGram: dec("1"), WeightGrams: dec("0"), Purity: "18K"}, ErrInvalidInput},
		{"negative making", Input{RatePerGram: dec("1"), WeightGrams: dec("1"), Purity: "18K", MakingCharges: dec("-1")}, ErrInvalidInput},
		{"bad purity", Input{RatePerGram: dec("1"), WeightGrams: dec("1"), Purity: "gold"}, ErrInvalidPurity},
		{"karat above 24", Input{RatePerGram: dec("1"), WeightGrams: dec("1"), Purity: "25K"}, ErrInvalidPurity},
		{"empty purity", Input{RatePerGram: dec("1"), WeightGrams: dec("1"), Purity: ""}, ErrInvalidPurity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFineness(t *testing.T) {
	f, err := Fineness("18K")
	require.NoError(t, err)
	assert.Equal(t, "0.75", f.String())

	f, err = Fineness("950")
	require.NoError(t, err)
	assert.Equal(t, "0.95", f.String())
}

func TestPerGram(t *testing.T) {
	perGram := PerGram(dec("186621"))
	assert.Equal(t, "6000", perGram.Round(2).String())
}

func TestForProduct_MissingInputs(t *testing.T) {
	p := &domain.Product{ID: "p1"}
	_, err := ForProduct(p, dec("6000"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

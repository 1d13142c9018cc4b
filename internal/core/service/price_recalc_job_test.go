package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

type staticRates map[domain.Metal]decimal.Decimal

func (s staticRates) GetRate(_ context.Context, metal domain.Metal) (decimal.Decimal, error) {
	rate, ok := s[metal]
	if !ok {
		return decimal.Zero, ErrRateUnavailable
	}
	return rate, nil
}

func recalcStore() *memStore {
	store := newMemStore()
	store.addProduct(domain.Product{
		ID: "gold-ring", Active: true, Metal: domain.MetalGold,
		WeightGrams: ptrDec("10"), Purity: ptrStr("18K"), MakingCharges: ptrDec("500"), GSTPercent: dec("3"),
	})
	store.addProduct(domain.Product{
		ID: "no-weight", Active: true, Metal: domain.MetalGold,
		Purity: ptrStr("22K"), MakingCharges: ptrDec("500"), GSTPercent: dec("3"),
	})
	store.addProduct(domain.Product{
		ID: "silver-anklet", Active: true, Metal: domain.MetalSilver,
		WeightGrams: ptrDec("20"), Purity: ptrStr("925"), MakingCharges: ptrDec("100"), GSTPercent: dec("3"),
	})
	store.addProduct(domain.Product{
		ID: "bad-purity", Active: true, Metal: domain.MetalGold,
		WeightGrams: ptrDec("5"), Purity: ptrStr("solid"), MakingCharges: ptrDec("100"), GSTPercent: dec("3"),
	})
	store.addProduct(domain.Product{
		ID: "inactive", Active: false, Metal: domain.MetalGold,
		WeightGrams: ptrDec("5"), Purity: ptrStr("22K"), MakingCharges: ptrDec("100"), GSTPercent: dec("3"),
	})
	return store
}

func TestPriceRecalculator_Run(t *testing.T) {
	store := recalcStore()
	notifier := &mockNotifier{}
	job := NewPriceRecalculator(store, staticRates{domain.MetalGold: dec("6000")}, notifier, testLogger())

	res, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Failed) // silver rate missing, bad purity
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, store.bulkCalls)

	p, _ := store.GetProduct(context.Background(), "gold-ring")
	assert.True(t, p.Price.Base.Equal(dec("45000")))
	assert.True(t, p.Price.GST.Equal(dec("1365")))
	assert.True(t, p.Price.Final.Equal(dec("46865")))

	assert.Empty(t, notifier.alerts)
}

func TestPriceRecalculator_NothingToUpdate(t *testing.T) {
	store := newMemStore()
	store.addProduct(domain.Product{ID: "plain", Active: true})
	job := NewPriceRecalculator(store, staticRates{}, &mockNotifier{}, testLogger())

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, store.bulkCalls)
}

func TestPriceRecalculator_BulkWriteFailureAlerts(t *testing.T) {
	store := recalcStore()
	store.bulkErr = errors.New("connection reset")
	notifier := &mockNotifier{}
	job := NewPriceRecalculator(store, staticRates{domain.MetalGold: dec("6000")}, notifier, testLogger())

	_, err := job.Run(context.Background())
	require.Error(t, err)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, port.SeverityCritical, notifier.alerts[0].Severity)
	assert.Equal(t, "price-recalculation", notifier.alerts[0].Source)
}

func TestPriceRecalculator_ListFailureAlerts(t *testing.T) {
	store := recalcStore()
	store.listErr = errors.New("db down")
	notifier := &mockNotifier{}
	job := NewPriceRecalculator(store, staticRates{}, notifier, testLogger())

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, notifier.alerts, 1)
}

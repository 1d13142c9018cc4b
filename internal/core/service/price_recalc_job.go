package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/pricing"
	"github.com/rl1809/jewel-store/internal/port"
)

type RateSource interface {
	GetRate(ctx context.Context, metal domain.Metal) (decimal.Decimal, error)
}

type PriceRecalcResult struct {
	Scanned int
	Skipped int
	Failed  int
	Updated int
}

// PriceRecalculator re-derives every active product's price from the
// current metal rates.
type PriceRecalculator struct {
	catalog  port.CatalogRepository
	rates    RateSource
	notifier port.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewPriceRecalculator(catalog port.CatalogRepository, rates RateSource, notifier port.Notifier, logger *zap.Logger) *PriceRecalculator {
	return &PriceRecalculator{
		catalog:  catalog,
		rates:    rates,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one sweep. Products without weight, purity or making charges
// are skipped; a product whose price cannot be computed is logged and
// skipped. Failing to list products or to write the batch raises an alert
// and returns the error.
func (j *PriceRecalculator) Run(ctx context.Context) (PriceRecalcResult, error) {
	var res PriceRecalcResult

	products, err := j.catalog.ListActiveProducts(ctx)
	if err != nil {
		j.alert(ctx, "listing active products failed", err, res)
		return res, fmt.Errorf("list active products: %w", err)
	}

	updates := make([]domain.PriceUpdate, 0, len(products))
	for i := range products {
		p := &products[i]
		res.Scanned++

		if !p.PriceInputsComplete() {
			res.Skipped++
			continue
		}

		rate, err := j.rates.GetRate(ctx, p.Metal)
		if err != nil {
			res.Failed++
			j.logger.Warn("price recalculation: rate unavailable",
				zap.String("product_id", p.ID), zap.String("metal", string(p.Metal)), zap.Error(err))
			continue
		}

		price, err := pricing.ForProduct(p, rate)
		if err != nil {
			res.Failed++
			j.logger.Warn("price recalculation: calculation failed", zap.String("product_id", p.ID), zap.Error(err))
			continue
		}

		updates = append(updates, domain.PriceUpdate{ProductID: p.ID, Price: price})
	}

	if len(updates) > 0 {
		if err := j.catalog.BulkUpdatePrices(ctx, updates); err != nil {
			j.alert(ctx, "bulk price update failed", err, res)
			return res, fmt.Errorf("bulk update prices: %w", err)
		}
	}
	res.Updated = len(updates)

	j.logger.Info("price recalculation finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (j *PriceRecalculator) alert(ctx context.Context, msg string, cause error, res PriceRecalcResult) {
	if j.notifier == nil {
		return
	}
	err := j.notifier.Notify(ctx, port.Alert{
		Source:   "price-recalculation",
		Severity: port.SeverityCritical,
		Message:  msg,
		Fields: map[string]string{
			"error":   cause.Error(),
			"scanned": strconv.Itoa(res.Scanned),
			"failed":  strconv.Itoa(res.Failed),
		},
		RaisedAt: j.now().UTC(),
	})
	if err != nil {
		j.logger.Error("failed to send alert", zap.String("message", msg), zap.Error(err))
	}
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

const (
	idempotencyKeyPrefix   = "order:"
	orderNumberAttempts    = 3
	orderNumberSuffixChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// OrderStore is the storage the order workflow reads from and writes to.
type OrderStore interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	port.AddressRepository
	port.CartRepository
	port.OrderRepository
}

type PlaceOrderInput struct {
	UserID        string
	AddressID     string
	PaymentMethod domain.PaymentMethod
	TransactionID string
	// RequestID, when set, makes the call idempotent per user.
	RequestID string
}

type PaymentCallback struct {
	OrderID       string
	TransactionID string
	Amount        decimal.Decimal
	Succeeded     bool
}

type OrderService struct {
	store  OrderStore
	cache  port.CacheRepository
	logger *zap.Logger
	now    func() time.Time

	newOrderNumber func(time.Time) string
}

func NewOrderService(store OrderStore, cache port.CacheRepository, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:          store,
		cache:          cache,
		logger:         logger,
		now:            time.Now,
		newOrderNumber: NewOrderNumber,
	}
}

// PlaceOrder converts the user's cart into an order. Validation failures are
// returned before anything is written; the order insert, stock decrements,
// cart clear and history append then commit as one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order *domain.Order, err error) {
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}

	if in.RequestID != "" && s.cache != nil {
		key := idempotencyKeyPrefix + in.UserID + ":" + in.RequestID

		ok, claimErr := s.cache.SetIdempotency(ctx, key)
		if claimErr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", claimErr)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}

		defer func() {
			if err == nil {
				return
			}
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(releaseErr))
			}
		}()
	}

	return s.placeOrder(ctx, in)
}

func (s *OrderService) placeOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	cart, err := s.store.GetCart(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	address, err := s.store.GetAddressForUser(ctx, in.AddressID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}

	items, total, err := s.snapshotItems(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Items:           items,
		ShippingAddress: *address,
		TotalAmount:     total,
		Status:          domain.OrderStatusProcessing,
		PaymentMethod:   in.PaymentMethod,
		Payment:         initialPayment(in),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = s.newOrderNumber(now)

		err = s.store.RunInTx(ctx, func(ctx context.Context, tx port.OrderTx) error {
			return commitOrder(ctx, tx, cart, order)
		})
		if errors.Is(err, port.ErrDuplicateOrderNumber) && attempt < orderNumberAttempts {
			s.logger.Warn("order number collision, retrying", zap.String("order_number", order.OrderNumber))
			continue
		}
		break
	}

	if err != nil {
		if errors.Is(err, ErrStockConflict) || errors.Is(err, ErrCartChanged) {
			s.logger.Info("order placement lost race", zap.String("user_id", in.UserID), zap.Error(err))
			return nil, err
		}
		s.logger.Error("order placement failed", zap.String("user_id", in.UserID), zap.Error(err))
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("payment_method", string(order.PaymentMethod)),
	)
	return order, nil
}

// commitOrder claims the priced cart first so a concurrent placement of the
// same cart, or a cart edited since pricing, aborts before any other write.
func commitOrder(ctx context.Context, tx port.OrderTx, cart *domain.Cart, order *domain.Order) error {
	if err := tx.ClearCart(ctx, cart); err != nil {
		if errors.Is(err, port.ErrCartChanged) {
			return fmt.Errorf("%w: user %s", ErrCartChanged, order.UserID)
		}
		return err
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return err
	}

	for _, dec := range order.StockDecrements() {
		if err := tx.DecrementStock(ctx, dec); err != nil {
			if errors.Is(err, port.ErrStockConflict) {
				return fmt.Errorf("%w: product %s", ErrStockConflict, dec.ProductID)
			}
			return err
		}
	}

	return tx.AppendOrderToHistory(ctx, order.UserID, order.ID)
}

// snapshotItems validates every cart line against live catalog data and
// returns the priced order lines with their total.
func (s *OrderService) snapshotItems(ctx context.Context, lines []domain.CartItem) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product, err := s.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}

		unit, err := checkLine(product, line.ProductID, line.VariantID, line.Quantity)
		if err != nil {
			return nil, decimal.Zero, err
		}

		item := domain.OrderItem{
			ProductID: product.ID,
			VariantID: line.VariantID,
			Name:      product.Name,
			SKU:       product.SKU,
			ImageURL:  product.ImageURL,
			UnitPrice: unit,
			Quantity:  line.Quantity,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
		if v := product.Variant(line.VariantID); v != nil {
			item.Size = v.Size
			item.Color = v.Color
		}

		items = append(items, item)
		total = total.Add(item.LineTotal)
	}

	return items, total, nil
}

// checkLine applies the per-line checks in order (product active, variant
// present, stock sufficient) and returns the effective unit price.
func checkLine(product *domain.Product, productID, variantID string, quantity int) (decimal.Decimal, error) {
	if product == nil || !product.Active {
		return decimal.Zero, &ProductUnavailableError{ProductID: productID}
	}

	unit := product.Price.Final
	if variantID != "" {
		v := product.Variant(variantID)
		if v == nil {
			return decimal.Zero, &VariantNotFoundError{ProductID: productID, VariantID: variantID}
		}
		unit = unit.Add(v.PriceAdjustment)
	}

	available, _ := domain.AvailableStock(product, variantID)
	if quantity > available {
		return decimal.Zero, &InsufficientStockError{
			ProductID: productID,
			VariantID: variantID,
			Requested: quantity,
			Available: available,
		}
	}

	return unit, nil
}

// initialPayment records every order as unpaid. Only ConfirmPayment moves an
// order to paid.
func initialPayment(in PlaceOrderInput) domain.PaymentDetails {
	details := domain.PaymentDetails{
		Status:     domain.PaymentStatusPending,
		AmountPaid: decimal.Zero,
	}
	if in.PaymentMethod.IsCashOnDelivery() {
		return details
	}

	ref := in.TransactionID
	if ref == "" {
		ref = "pending-" + uuid.NewString()
	}
	details.TransactionID = &ref
	return details
}

// ConfirmPayment applies a payment gateway's verified result. Repeating a
// callback that was already applied is a no-op.
func (s *OrderService) ConfirmPayment(ctx context.Context, cb PaymentCallback) (*domain.Order, error) {
	if cb.Succeeded && cb.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	order, err := s.store.GetOrder(ctx, cb.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod.IsCashOnDelivery() {
		return nil, ErrPaymentMethodMismatch
	}

	current := order.Payment.Status
	switch {
	case current == domain.PaymentStatusPaid:
		if cb.Succeeded && samePaymentRef(order, cb.TransactionID) {
			return order, nil
		}
		return nil, ErrPaymentConflict
	case current == domain.PaymentStatusFailed && !cb.Succeeded:
		return order, nil
	}

	update := port.PaymentUpdate{
		OrderID:       order.ID,
		From:          current,
		To:            domain.PaymentStatusFailed,
		AmountPaid:    decimal.Zero,
		TransactionID: order.Payment.TransactionID,
	}
	if cb.Succeeded {
		if !cb.Amount.Equal(order.TotalAmount) {
			return nil, fmt.Errorf("%w: paid %s, total %s", ErrPaymentAmountMismatch,
				cb.Amount.StringFixed(2), order.TotalAmount.StringFixed(2))
		}
		paidAt := s.now().UTC()
		txn := cb.TransactionID
		update.To = domain.PaymentStatusPaid
		update.AmountPaid = cb.Amount
		update.TransactionID = &txn
		update.PaymentDate = &paidAt
	}

	changed, err := s.store.UpdatePayment(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	updated, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	if !changed {
		// A concurrent callback won; accept it only if it recorded the same result.
		if updated != nil && updated.Payment.Status == update.To && samePaymentRef(updated, cb.TransactionID) {
			return updated, nil
		}
		return nil, ErrPaymentConflict
	}

	s.logger.Info("order payment updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(update.From)),
		zap.String("to", string(update.To)),
	)
	return updated, nil
}

func samePaymentRef(order *domain.Order, txn string) bool {
	return order.Payment.TransactionID != nil && *order.Payment.TransactionID == txn
}

// GetOrder returns the order only when it belongs to userID.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// NewOrderNumber builds a human-facing order number from the placement time
// and a random suffix. Uniqueness is enforced by storage, not here.
func NewOrderNumber(t time.Time) string {
	b := make([]byte, 6)
	rand.Read(b) // never returns an error since Go 1.24
	for i := range b {
		b[i] = orderNumberSuffixChars[int(b[i])%len(orderNumberSuffixChars)]
	}
	return "ORD-" + t.UTC().Format("20060102150405") + "-" + string(b)
}

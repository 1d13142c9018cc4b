package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/jewel-store/internal/core/domain"
)

var (
	// ErrStockConflict is returned by a conditional decrement whose
	// predicate (stock >= quantity) no longer holds at write time.
	ErrStockConflict = errors.New("stock changed concurrently")

	// ErrCartChanged is returned by ClearCart when the stored cart no longer
	// holds the lines the order was priced from.
	ErrCartChanged = errors.New("cart changed concurrently")

	// ErrDuplicateOrderNumber is returned when the order number unique index rejects an insert.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// CatalogRepository is the read side of the product catalog plus the bulk
// price write used by the recalculation sweep.
type CatalogRepository interface {
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	ListActiveProducts(ctx context.Context) ([]domain.Product, error)

	// BulkUpdatePrices applies all updates as one write.
	BulkUpdatePrices(ctx context.Context, updates []domain.PriceUpdate) error
}

type AddressRepository interface {
	// GetAddressForUser returns nil, nil unless the address exists and belongs to userID.
	GetAddressForUser(ctx context.Context, addressID, userID string) (*domain.Address, error)
}

type CartRepository interface {
	// GetCart returns an empty cart when the user has none.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	SaveCart(ctx context.Context, cart *domain.Cart) error
}

type UserRepository interface {
	// DeleteUnverifiedBefore removes unverified users created before cutoff
	// and returns how many were deleted.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderTx is the set of writes that make up order placement. All calls on a
// single OrderTx commit or roll back together.
type OrderTx interface {
	InsertOrder(ctx context.Context, order *domain.Order) error

	// DecrementStock returns ErrStockConflict when fewer than quantity units remain.
	DecrementStock(ctx context.Context, dec domain.StockDecrement) error

	// ClearCart empties the cart only if it still holds exactly the lines of
	// snapshot, and returns ErrCartChanged otherwise.
	ClearCart(ctx context.Context, snapshot *domain.Cart) error

	AppendOrderToHistory(ctx context.Context, userID, orderID string) error
}

type PaymentUpdate struct {
	OrderID       string
	From          domain.PaymentStatus
	To            domain.PaymentStatus
	AmountPaid    decimal.Decimal
	TransactionID *string
	PaymentDate   *time.Time
}

type OrderRepository interface {
	// RunInTx runs fn inside one storage transaction. A non-nil error from fn
	// rolls every write back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error

	// GetOrder returns nil, nil when the order does not exist.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// UpdatePayment applies the update only while the order's payment status
	// still equals update.From. It reports whether a row changed.
	UpdatePayment(ctx context.Context, update PaymentUpdate) (bool, error)
}

// Store is everything a storage backend provides.
type Store interface {
	CatalogRepository
	AddressRepository
	CartRepository
	UserRepository
	OrderRepository
}

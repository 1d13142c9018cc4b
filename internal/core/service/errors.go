package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrEmptyCart            = errors.New("cart is empty")
	ErrAddressNotFound      = errors.New("address not found")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrCartItemNotFound     = errors.New("item not in cart")

	// ErrStockConflict means stock ran out between validation and commit.
	// Nothing was written; the caller may retry.
	ErrStockConflict = errors.New("stock changed while placing order, please retry")

	// ErrCartChanged means the cart was modified or already converted by a
	// concurrent request after it was priced. Nothing was written.
	ErrCartChanged = errors.New("cart changed while placing order, please retry")

	ErrOrderNotFound         = errors.New("order not found")
	ErrPaymentMethodMismatch = errors.New("order is cash on delivery")
	ErrPaymentAmountMismatch = errors.New("paid amount does not match order total")
	ErrPaymentConflict       = errors.New("order payment already settled")
	ErrMissingTransactionID  = errors.New("transaction id is required")
)

type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductUnavailable }

type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s of product %s not found", e.VariantID, e.ProductID)
}

func (e *VariantNotFoundError) Unwrap() error { return ErrVariantNotFound }

type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("insufficient stock for product %s variant %s: requested %d, available %d",
			e.ProductID, e.VariantID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IsValidation reports whether err was caused by the caller's input or cart
// state rather than by the service.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyCart, ErrAddressNotFound, ErrProductUnavailable, ErrVariantNotFound,
		ErrInsufficientStock, ErrInvalidPaymentMethod, ErrInvalidQuantity, ErrCartItemNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

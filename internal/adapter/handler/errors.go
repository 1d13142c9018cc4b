package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/jewel-store/internal/core/service"
)

type errorMapping struct {
	target    error
	status    int
	grpcCode  codes.Code
	code      string
	retryable bool
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{service.ErrStockConflict, http.StatusConflict, codes.Aborted, "stock_conflict", true},
	{service.ErrCartChanged, http.StatusConflict, codes.Aborted, "cart_changed", true},
	{service.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists, "duplicate_request", false},
	{service.ErrInsufficientStock, http.StatusConflict, codes.FailedPrecondition, "insufficient_stock", false},
	{service.ErrProductUnavailable, http.StatusConflict, codes.FailedPrecondition, "product_unavailable", false},
	{service.ErrVariantNotFound, http.StatusNotFound, codes.NotFound, "variant_not_found", false},
	{service.ErrEmptyCart, http.StatusUnprocessableEntity, codes.FailedPrecondition, "empty_cart", false},
	{service.ErrAddressNotFound, http.StatusNotFound, codes.NotFound, "address_not_found", false},
	{service.ErrCartItemNotFound, http.StatusNotFound, codes.NotFound, "cart_item_not_found", false},
	{service.ErrOrderNotFound, http.StatusNotFound, codes.NotFound, "order_not_found", false},
	{service.ErrInvalidPaymentMethod, http.StatusBadRequest, codes.InvalidArgument, "invalid_payment_method", false},
	{service.ErrInvalidQuantity, http.StatusBadRequest, codes.InvalidArgument, "invalid_quantity", false},
	{service.ErrMissingTransactionID, http.StatusBadRequest, codes.InvalidArgument, "missing_transaction_id", false},
	{service.ErrPaymentMethodMismatch, http.StatusUnprocessableEntity, codes.FailedPrecondition, "payment_method_mismatch", false},
	{service.ErrPaymentAmountMismatch, http.StatusUnprocessableEntity, codes.FailedPrecondition, "payment_amount_mismatch", false},
	{service.ErrPaymentConflict, http.StatusConflict, codes.FailedPrecondition, "payment_conflict", false},
	{service.ErrRateUnavailable, http.StatusServiceUnavailable, codes.Unavailable, "rate_unavailable", true},
}

var internalError = errorMapping{
	status:   http.StatusInternalServerError,
	grpcCode: codes.Internal,
	code:     "internal_error",
}

func mapError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

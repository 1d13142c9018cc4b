package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/service"
)

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	ConfirmPayment(ctx context.Context, cb service.PaymentCallback) (*domain.Order, error)
}

type CartUseCase interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID, variantID string, quantity int) (*domain.CartView, error)
	UpdateItemQuantity(ctx context.Context, userID, productID, variantID string, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID, variantID string) (*domain.CartView, error)
}

type RateUseCase interface {
	GetRate(ctx context.Context, metal domain.Metal) (decimal.Decimal, error)
}

type HTTPConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// CallbackToken must be presented in X-Callback-Token by the payment
	// gateway. Callbacks are refused while it is empty.
	CallbackToken string
}

type HTTPHandler struct {
	orders OrderUseCase
	carts  CartUseCase
	rates  RateUseCase
	cfg    HTTPConfig
	logger *zap.Logger
}

type PlaceOrderHTTPRequest struct {
	AddressID     string `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

type CartItemHTTPRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type PaymentCallbackHTTPRequest struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

type MetalRateHTTPResponse struct {
	Metal    domain.Metal    `json:"metal"`
	PerGram  decimal.Decimal `json:"per_gram"`
	Currency string          `json:"currency"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

func NewHTTPHandler(orders OrderUseCase, carts CartUseCase, rates RateUseCase, cfg HTTPConfig, logger *zap.Logger) *HTTPHandler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	return &HTTPHandler{orders: orders, carts: carts, rates: rates, cfg: cfg, logger: logger}
}

// Routes builds the router. Handlers under /cart and /orders require the
// X-User-ID header set by the upstream auth proxy.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.cfg.RequestTimeout))
	r.Use(middleware.RequestSize(h.cfg.MaxRequestBodySize))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/metal-rates/{metal}", h.GetMetalRate)
		r.With(CallbackTokenMiddleware(h.cfg.CallbackToken)).Post("/payments/callback", h.PaymentCallback)

		r.Group(func(r chi.Router) {
			r.Use(UserIDMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/items", h.AddCartItem)
				r.Patch("/items/{productID}", h.UpdateCartItem)
				r.Delete("/items/{productID}", h.RemoveCartItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.PlaceOrder)
				r.Get("/", h.ListOrders)
				r.Get("/{orderID}", h.GetOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, "jewel-store-http")
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderHTTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AddressID == "" || req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "missing_fields", "address_id and payment_method are required")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get("Idempotency-Key")
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderInput{
		UserID:        userIDFromContext(r.Context()),
		AddressID:     req.AddressID,
		PaymentMethod: domain.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		TransactionID: req.TransactionID,
		RequestID:     requestID,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackHTTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "missing_fields", "order_id is required")
		return
	}

	var succeeded bool
	switch strings.ToLower(req.Status) {
	case "succeeded", "success", "paid":
		succeeded = true
	case "failed", "failure":
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be succeeded or failed")
		return
	}

	order, err := h.orders.ConfirmPayment(r.Context(), service.PaymentCallback{
		OrderID:       req.OrderID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Succeeded:     succeeded,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemHTTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "missing_fields", "product_id is required")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), userIDFromContext(r.Context()), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemHTTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItemQuantity(r.Context(), userIDFromContext(r.Context()),
		chi.URLParam(r, "productID"), variantParam(r, req.VariantID), req.Quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), userIDFromContext(r.Context()),
		chi.URLParam(r, "productID"), variantParam(r, ""))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) GetMetalRate(w http.ResponseWriter, r *http.Request) {
	metal, err := domain.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_metal", err.Error())
		return
	}

	rate, err := h.rates.GetRate(r.Context(), metal)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MetalRateHTTPResponse{Metal: metal, PerGram: rate.Round(2), Currency: "INR"})
}

func (h *HTTPHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	msg := err.Error()
	if m.status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	respondJSON(w, m.status, ErrorResponse{Error: msg, Code: m.code, Retryable: m.retryable})
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func variantParam(r *http.Request, fallback string) string {
	if v := r.URL.Query().Get("variant_id"); v != "" {
		return v
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

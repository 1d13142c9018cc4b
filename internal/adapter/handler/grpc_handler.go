package handler

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/service"
)

const orderServiceName = "jewellery.v1.OrderService"

type PlaceOrderRequest struct {
	UserID        string `json:"user_id"`
	AddressID     string `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

type GetOrderRequest struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
}

type ConfirmPaymentRequest struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Succeeded     bool            `json:"succeeded"`
}

type OrderResponse struct {
	Order *domain.Order `json:"order"`
}

// OrderServiceServer is the server API for jewellery.v1.OrderService.
type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*OrderResponse, error)
}

type GRPCHandler struct {
	orders OrderUseCase
	logger *zap.Logger
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orders OrderUseCase, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, logger: logger}
}

// RegisterOrderServiceServer registers srv on s. Messages travel as JSON, so
// callers must use the "json" content-subtype.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error) {
	if req.UserID == "" || req.AddressID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and address_id are required")
	}

	order, err := h.orders.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:        req.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: domain.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		TransactionID: req.TransactionID,
		RequestID:     req.RequestID,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderResponse{Order: order}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if req.UserID == "" || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and order_id are required")
	}

	order, err := h.orders.GetOrder(ctx, req.UserID, req.OrderID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderResponse{Order: order}, nil
}

func (h *GRPCHandler) ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*OrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := h.orders.ConfirmPayment(ctx, service.PaymentCallback{
		OrderID:       req.OrderID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Succeeded:     req.Succeeded,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderResponse{Order: order}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	m := mapError(err)
	if m.grpcCode == codes.Internal {
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(m.grpcCode, err.Error())
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "ConfirmPayment", Handler: confirmPaymentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jewellery/v1/order_service",
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/PlaceOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/GetOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func confirmPaymentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ConfirmPaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).ConfirmPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: confirmPaymentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).ConfirmPayment(ctx, req.(*ConfirmPaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderServiceClient calls jewellery.v1.OrderService with the JSON codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, opts...)
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "PlaceOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "GetOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) ConfirmPayment(ctx context.Context, in *ConfirmPaymentRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "ConfirmPayment", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

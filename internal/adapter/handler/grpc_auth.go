package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	callbackTokenMetadataKey = "x-callback-token"
	confirmPaymentMethod     = "/" + orderServiceName + "/ConfirmPayment"
)

// CallbackTokenInterceptor guards ConfirmPayment with the payment gateway's
// shared secret, read from the x-callback-token metadata. Other methods pass
// through. With no token configured ConfirmPayment is refused.
func CallbackTokenInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod != confirmPaymentMethod {
			return handler(ctx, req)
		}
		if token == "" {
			return nil, status.Error(codes.PermissionDenied, "payment callbacks are not enabled")
		}

		var got string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(callbackTokenMetadataKey); len(vals) > 0 {
				got = vals[0]
			}
		}
		if !validCallbackToken(token, got) {
			return nil, status.Error(codes.Unauthenticated, "invalid callback token")
		}
		return handler(ctx, req)
	}
}

// WithCallbackToken attaches the gateway secret to an outgoing ConfirmPayment call.
func WithCallbackToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, callbackTokenMetadataKey, token)
}
